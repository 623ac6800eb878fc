package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/infrastructure/chunking"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"
	"LinkMind/internal/modules/agent/infrastructure/vectorindex"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

type ingestState struct {
	Req *IngestRequest

	Chunker  *chunking.Chunker
	Embedder embedding.Embedder
	Meta     embedProvider.EmbedderMeta

	Docs    []*schema.Document
	Vectors [][]float32
	Index   *vectorindex.FlatIndex
	Skipped []string

	Start time.Time
	Err   error
}

func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Prepare    = "Prepare"
		FetchParse = "FetchParse"
		Chunk      = "Chunk"
		Embed      = "Embed"
		BuildIndex = "BuildIndex"
		Persist    = "Persist"
	)

	g := compose.NewGraph[*IngestRequest, *IngestResult]()

	_ = g.AddLambdaNode(Prepare, compose.InvokableLambdaWithOption(p.prepareNode), compose.WithNodeName(Prepare))
	_ = g.AddLambdaNode(FetchParse, compose.InvokableLambdaWithOption(p.fetchParseNode), compose.WithNodeName(FetchParse))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(BuildIndex, compose.InvokableLambdaWithOption(p.buildIndexNode), compose.WithNodeName(BuildIndex))
	_ = g.AddLambdaNode(Persist, compose.InvokableLambdaWithOption(p.persistNode), compose.WithNodeName(Persist))

	_ = g.AddEdge(compose.START, Prepare)
	_ = g.AddEdge(Prepare, FetchParse)
	_ = g.AddEdge(FetchParse, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, BuildIndex)
	_ = g.AddEdge(BuildIndex, Persist)
	_ = g.AddEdge(Persist, compose.END)

	return g.Compile(ctx, compose.WithGraphName("KnowledgeIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *IngestPipeline) prepareNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = xerr.ValidationError("空请求")
		return st, nil
	}

	req.Name = strings.TrimSpace(req.Name)
	req.EmbeddingModel = strings.TrimSpace(req.EmbeddingModel)
	if req.Name == "" {
		st.Err = xerr.ValidationError("知识库名称不能为空")
		return st, nil
	}
	if req.EmbeddingModel == "" {
		st.Err = xerr.ValidationError("向量模型不能为空")
		return st, nil
	}
	if len(req.Files) == 0 {
		st.Err = xerr.ValidationError("文件列表不能为空")
		return st, nil
	}

	chunker, err := chunking.NewChunker(req.ChunkStrategy, req.ChunkSize, req.ChunkOverlap, req.BoundaryMarker)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Chunker = chunker

	cred, err := p.models.GetByName(ctx, req.EmbeddingModel)
	if err != nil {
		st.Err = err
		return st, nil
	}
	apiKey := ""
	if cred != nil {
		apiKey = cred.ModelKey
	}
	embedder, meta, err := p.newEmbedder(ctx, req.EmbeddingModel, apiKey, p.conf)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Embedder = embedder
	st.Meta = meta
	return st, nil
}

// fetchParseNode 逐个下载并解析文件
// 默认严格模式：任一文件失败立即中止并报出文件名，SkipBroken 时只跳过
func (p *IngestPipeline) fetchParseNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil {
		return st, nil
	}

	for _, f := range st.Req.Files {
		docs, err := p.fetchAndParse(ctx, f, st.Req.HeaderFlatten)
		if err != nil {
			if st.Req.SkipBroken {
				zlog.Warn("文件处理失败，跳过",
					zap.String("collection", st.Req.Name),
					zap.String("file", f.Name),
					zap.Error(err))
				st.Skipped = append(st.Skipped, f.Name)
				continue
			}
			st.Err = err
			return st, nil
		}
		st.Docs = append(st.Docs, docs...)
	}
	return st, nil
}

func (p *IngestPipeline) fetchAndParse(ctx context.Context, f IngestFile, headerFlatten bool) ([]*schema.Document, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" || strings.TrimSpace(f.URL) == "" {
		return nil, xerr.ValidationError(fmt.Sprintf("文件名或地址缺失: %q", f.Name))
	}
	path, cleanup, err := p.fetcher.Download(ctx, f.URL, name)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return p.loadFile(path, name, headerFlatten)
}

func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil {
		return st, nil
	}

	docs, err := st.Chunker.ChunkDocuments(ctx, st.Docs)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if len(docs) == 0 {
		st.Err = xerr.NoContent("所有文件均未提取到有效内容")
		return st, nil
	}
	st.Docs = docs
	return st, nil
}

func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil {
		return st, nil
	}

	texts := make([]string, 0, len(st.Docs))
	for _, d := range st.Docs {
		texts = append(texts, d.Content)
	}

	vecs, err := st.Embedder.EmbedStrings(ctx, texts)
	if err != nil {
		st.Err = xerr.ModelInvocationError(fmt.Sprintf("向量化失败: %v", err))
		return st, nil
	}
	if len(vecs) != len(texts) {
		st.Err = xerr.ModelInvocationError(fmt.Sprintf("向量化返回数量异常: 期望 %d 实际 %d", len(texts), len(vecs)))
		return st, nil
	}

	st.Vectors = make([][]float32, len(vecs))
	for i, v := range vecs {
		vec32 := make([]float32, len(v))
		for j := range v {
			vec32[j] = float32(v[j])
		}
		st.Vectors[i] = vec32
	}
	return st, nil
}

func (p *IngestPipeline) buildIndexNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	_ = ctx
	if st.Err != nil {
		return st, nil
	}
	if len(st.Vectors) == 0 {
		st.Err = xerr.NoContent("没有可写入索引的向量")
		return st, nil
	}

	// 维度以模型实际返回为准
	dim := len(st.Vectors[0])
	idx, err := vectorindex.NewFlatIndex(st.Req.Similarity, dim)
	if err != nil {
		st.Err = err
		return st, nil
	}

	for i, vec := range st.Vectors {
		source, _ := st.Docs[i].MetaData["source"].(string)
		if err := idx.Add(vec, vectorindex.Chunk{
			Content:  st.Docs[i].Content,
			Source:   source,
			Position: i,
		}); err != nil {
			st.Err = err
			return st, nil
		}
	}
	st.Index = idx
	return st, nil
}

func (p *IngestPipeline) persistNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	res := &IngestResult{}
	if st.Req != nil {
		res.Name = st.Req.Name
		res.Files = len(st.Req.Files)
		res.SkippedFiles = st.Skipped
	}
	if st.Err != nil {
		return res, st.Err
	}

	indexData, storeData, err := st.Index.Encode()
	if err != nil {
		return res, err
	}

	fileNames := make([]string, 0, len(st.Req.Files))
	for _, f := range st.Req.Files {
		fileNames = append(fileNames, f.Name)
	}
	fileListJSON, _ := json.Marshal(fileNames)

	now := time.Now()
	col := &entity.KnowledgeCollection{
		Name:           st.Req.Name,
		Description:    st.Req.Description,
		EmbeddingModel: st.Req.EmbeddingModel,
		ChunkStrategy:  st.Req.ChunkStrategy,
		ChunkSize:      st.Chunker.ChunkSize,
		ChunkOverlap:   st.Chunker.ChunkOverlap,
		BoundaryMarker: st.Req.BoundaryMarker,
		Similarity:     st.Index.Metric(),
		FileListJson:   string(fileListJSON),
		ChunkCount:     st.Index.Len(),
		Dim:            st.Index.Dim(),
		IndexData:      indexData,
		StoreData:      storeData,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.collections.SaveCollection(ctx, col); err != nil {
		return res, err
	}

	// 新索引直接进缓存，避免下一次检索重新反序列化
	p.indexes.Put(st.Req.Name, st.Index)

	res.Chunks = st.Index.Len()
	res.Dim = st.Index.Dim()
	res.DurationMs = time.Since(st.Start).Milliseconds()

	zlog.Info("知识入库完成",
		zap.String("collection", res.Name),
		zap.String("model", st.Req.EmbeddingModel),
		zap.Int("files", res.Files),
		zap.Int("skipped", len(res.SkippedFiles)),
		zap.Int("chunks", res.Chunks),
		zap.Int("dim", res.Dim),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}
