package pipeline

import (
	"context"
	"strings"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/domain/repository"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"
	"LinkMind/internal/modules/agent/infrastructure/fetch"
	"LinkMind/internal/modules/agent/infrastructure/loader"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"
	"LinkMind/pkg/xerr"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// IngestFile 待入库的一个文件
type IngestFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type IngestRequest struct {
	Name           string
	Description    string
	EmbeddingModel string
	ChunkStrategy  string
	ChunkSize      int
	ChunkOverlap   int
	BoundaryMarker string
	Similarity     string
	Files          []IngestFile
	// SkipBroken 为真时单个文件失败只跳过并记录，默认任一文件失败整体中止
	SkipBroken bool
	// HeaderFlatten 为真时 csv/xlsx 按表头逐行平铺，否则按原始文本处理
	HeaderFlatten bool
}

type IngestResult struct {
	Name         string   `json:"name"`
	Files        int      `json:"files"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
	Chunks       int      `json:"chunks"`
	Dim          int      `json:"dim"`
	DurationMs   int64    `json:"duration_ms"`
}

type embedderFactory func(ctx context.Context, modelName, apiKey string, conf *config.Config) (embedding.Embedder, embedProvider.EmbedderMeta, error)

// IngestPipeline 知识入库管线：下载解析 -> 切分 -> 向量化 -> 建索引 -> 落库
// 同名集合整体替换，新索引完整落库前旧索引持续可检索
type IngestPipeline struct {
	collections repository.CollectionRepository
	models      repository.ModelRepository
	indexes     *retrieval.IndexCache
	fetcher     *fetch.Fetcher
	conf        *config.Config

	newEmbedder embedderFactory
	loadFile    func(path, source string, headerFlatten bool) ([]*schema.Document, error)

	r compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(collections repository.CollectionRepository, models repository.ModelRepository, indexes *retrieval.IndexCache, fetcher *fetch.Fetcher, conf *config.Config) (*IngestPipeline, error) {
	p := &IngestPipeline{
		collections: collections,
		models:      models,
		indexes:     indexes,
		fetcher:     fetcher,
		conf:        conf,
		newEmbedder: embedProvider.NewEmbedderForModel,
		loadFile:    loader.LoadFile,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

func (p *IngestPipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	return p.r.Invoke(ctx, &req)
}

// DeleteCollection 删除集合并使索引缓存失效
func (p *IngestPipeline) DeleteCollection(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return xerr.ValidationError("知识库名称不能为空")
	}
	col, err := p.collections.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if col == nil {
		return xerr.NotFoundError("知识库不存在: " + name)
	}
	if err := p.collections.DeleteByName(ctx, name); err != nil {
		return err
	}
	p.indexes.Evict(name)
	return nil
}
