package retrieval

import (
	"context"
	"testing"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/domain/entity"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"
	"LinkMind/internal/modules/agent/infrastructure/vectorindex"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type fakeCollectionRepo struct {
	collections map[string]*entity.KnowledgeCollection
}

func (f *fakeCollectionRepo) SaveCollection(ctx context.Context, c *entity.KnowledgeCollection) error {
	f.collections[c.Name] = c
	return nil
}

func (f *fakeCollectionRepo) GetByName(ctx context.Context, name string) (*entity.KnowledgeCollection, error) {
	return f.collections[name], nil
}

func (f *fakeCollectionRepo) GetIndexBlobs(ctx context.Context, name string) ([]byte, []byte, error) {
	c := f.collections[name]
	if c == nil {
		return nil, nil, nil
	}
	return c.IndexData, c.StoreData, nil
}

func (f *fakeCollectionRepo) ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error) {
	var out []*entity.KnowledgeCollection
	for _, c := range f.collections {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCollectionRepo) DeleteByName(ctx context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

type fakeModelRepo struct {
	creds map[string]string
}

func (f *fakeModelRepo) GetByName(ctx context.Context, name string) (*entity.ModelCredential, error) {
	key, ok := f.creds[name]
	if !ok {
		return nil, nil
	}
	return &entity.ModelCredential{ModelName: name, ModelKey: key}, nil
}

func (f *fakeModelRepo) CreateModel(ctx context.Context, m *entity.ModelCredential) error {
	f.creds[m.ModelName] = m.ModelKey
	return nil
}

func (f *fakeModelRepo) ListModels(ctx context.Context) ([]*entity.ModelCredential, error) {
	return nil, nil
}

func mockFactory(ctx context.Context, modelName, apiKey string, conf *config.Config) (embedding.Embedder, embedProvider.EmbedderMeta, error) {
	return embedProvider.NewMockEmbedder(testDim), embedProvider.EmbedderMeta{Provider: "mock", Model: modelName, Dim: testDim}, nil
}

// buildCollection 用 mock 向量化器构建一个可检索的集合
func buildCollection(t *testing.T, name string, texts []string) *entity.KnowledgeCollection {
	t.Helper()
	idx, err := vectorindex.NewFlatIndex(vectorindex.MetricCosine, testDim)
	require.NoError(t, err)

	em := embedProvider.NewMockEmbedder(testDim)
	vecs, err := em.EmbedStrings(context.Background(), texts)
	require.NoError(t, err)
	for i, v := range vecs {
		f32 := make([]float32, len(v))
		for j, x := range v {
			f32[j] = float32(x)
		}
		require.NoError(t, idx.Add(f32, vectorindex.Chunk{Content: texts[i], Source: name, Position: i}))
	}

	indexData, storeData, err := idx.Encode()
	require.NoError(t, err)
	return &entity.KnowledgeCollection{
		Name:           name,
		EmbeddingModel: "mock-embed",
		Similarity:     vectorindex.MetricCosine,
		ChunkCount:     idx.Len(),
		Dim:            testDim,
		IndexData:      indexData,
		StoreData:      storeData,
	}
}

func newTestRetriever(t *testing.T, cols ...*entity.KnowledgeCollection) (*Retriever, *fakeCollectionRepo) {
	t.Helper()
	repo := &fakeCollectionRepo{collections: map[string]*entity.KnowledgeCollection{}}
	for _, c := range cols {
		repo.collections[c.Name] = c
	}
	models := &fakeModelRepo{creds: map[string]string{"mock-embed": "k"}}
	r := NewRetriever(repo, models, NewIndexCache(repo), &config.Config{})
	r.newEmbedder = mockFactory
	return r, repo
}

func TestRetrieveExactMatchFirst(t *testing.T) {
	r, _ := newTestRetriever(t, buildCollection(t, "kb1", []string{"猫的习性", "狗的训练", "鸟的迁徙"}))

	got, err := r.Retrieve(context.Background(), []string{"kb1"}, "狗的训练", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "狗的训练", got[0].Chunk.Content)
}

func TestRetrieveTopKTruncation(t *testing.T) {
	r, _ := newTestRetriever(t, buildCollection(t, "kb1", []string{"a", "b", "c", "d", "e"}))

	got, err := r.Retrieve(context.Background(), []string{"kb1"}, "a", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieveDedupAcrossCollections(t *testing.T) {
	// 两个集合包含同一片段内容，去重后只保留先出现的
	r, _ := newTestRetriever(t,
		buildCollection(t, "kb1", []string{"共享片段", "kb1独有"}),
		buildCollection(t, "kb2", []string{"共享片段", "kb2独有"}),
	)

	got, err := r.Retrieve(context.Background(), []string{"kb1", "kb2"}, "共享片段", 10)
	require.NoError(t, err)

	count := 0
	for _, res := range got {
		if res.Chunk.Content == "共享片段" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRetrieveSkipsMissingCollection(t *testing.T) {
	r, _ := newTestRetriever(t, buildCollection(t, "kb1", []string{"内容"}))

	got, err := r.Retrieve(context.Background(), []string{"不存在", "kb1"}, "内容", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "内容", got[0].Chunk.Content)
}

func TestRetrieveSkipsCorruptIndex(t *testing.T) {
	broken := &entity.KnowledgeCollection{
		Name:           "broken",
		EmbeddingModel: "mock-embed",
		IndexData:      []byte("garbage"),
		StoreData:      []byte("garbage"),
	}
	r, _ := newTestRetriever(t, broken, buildCollection(t, "kb1", []string{"正常内容"}))

	got, err := r.Retrieve(context.Background(), []string{"broken", "kb1"}, "正常内容", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "正常内容", got[0].Chunk.Content)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r, _ := newTestRetriever(t)
	_, err := r.Retrieve(context.Background(), []string{"kb1"}, "", 3)
	require.Error(t, err)
}

func TestIndexCacheHitAndEvict(t *testing.T) {
	col := buildCollection(t, "kb1", []string{"内容"})
	repo := &fakeCollectionRepo{collections: map[string]*entity.KnowledgeCollection{"kb1": col}}
	cache := NewIndexCache(repo)
	ctx := context.Background()

	idx, err := cache.Get(ctx, "kb1")
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 1, cache.Len())

	// 底层数据删掉后仍命中缓存
	delete(repo.collections, "kb1")
	idx2, err := cache.Get(ctx, "kb1")
	require.NoError(t, err)
	assert.Same(t, idx, idx2)

	cache.Evict("kb1")
	idx3, err := cache.Get(ctx, "kb1")
	require.NoError(t, err)
	assert.Nil(t, idx3)
}
