package retrieval

import (
	"context"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/domain/repository"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"
	"LinkMind/internal/modules/agent/infrastructure/vectorindex"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
)

// EmbedderFactory 向量化器构造函数，测试时可替换
type EmbedderFactory func(ctx context.Context, modelName, apiKey string, conf *config.Config) (embedding.Embedder, embedProvider.EmbedderMeta, error)

// Retriever 跨集合检索引擎
// 每个集合用自己的向量模型编码查询，各自检索后合并，按内容去重（先到先留）并截断到 topK
type Retriever struct {
	collections repository.CollectionRepository
	models      repository.ModelRepository
	indexes     *IndexCache
	conf        *config.Config

	newEmbedder EmbedderFactory
}

func NewRetriever(collections repository.CollectionRepository, models repository.ModelRepository, indexes *IndexCache, conf *config.Config) *Retriever {
	return &Retriever{
		collections: collections,
		models:      models,
		indexes:     indexes,
		conf:        conf,
		newEmbedder: embedProvider.NewEmbedderForModel,
	}
}

// SetEmbedderFactory 覆盖向量化器构造
func (r *Retriever) SetEmbedderFactory(f EmbedderFactory) {
	r.newEmbedder = f
}

// Retrieve 在多个集合上检索查询文本
// 单个集合缺失、索引损坏或凭证缺失时记录并跳过，不中断整次检索
func (r *Retriever) Retrieve(ctx context.Context, names []string, query string, topK int) ([]vectorindex.SearchResult, error) {
	if query == "" {
		return nil, xerr.ValidationError("查询内容不能为空")
	}
	if topK <= 0 {
		topK = 3
	}

	var merged []vectorindex.SearchResult
	for _, name := range names {
		if name == "" {
			continue
		}
		results, err := r.retrieveOne(ctx, name, query, topK)
		if err != nil {
			zlog.Warn("集合检索失败，跳过",
				zap.String("collection", name),
				zap.Error(err))
			continue
		}
		merged = append(merged, results...)
	}

	return dedupByContent(merged, topK), nil
}

func (r *Retriever) retrieveOne(ctx context.Context, name, query string, topK int) ([]vectorindex.SearchResult, error) {
	col, err := r.collections.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, xerr.NotFoundError("知识库不存在: " + name)
	}

	idx, err := r.indexes.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if idx == nil || idx.Len() == 0 {
		return nil, nil
	}

	cred, err := r.models.GetByName(ctx, col.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	apiKey := ""
	if cred != nil {
		apiKey = cred.ModelKey
	}

	embedder, _, err := r.newEmbedder(ctx, col.EmbeddingModel, apiKey, r.conf)
	if err != nil {
		return nil, err
	}
	vecs, err := embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, xerr.ModelInvocationError("向量化返回数量异常")
	}

	return idx.Search(toFloat32(vecs[0]), topK)
}

// dedupByContent 按片段内容去重，先出现者保留，随后截断到 topK
func dedupByContent(results []vectorindex.SearchResult, topK int) []vectorindex.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]vectorindex.SearchResult, 0, len(results))
	for _, res := range results {
		if _, ok := seen[res.Chunk.Content]; ok {
			continue
		}
		seen[res.Chunk.Content] = struct{}{}
		out = append(out, res)
		if len(out) == topK {
			break
		}
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
