package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"LinkMind/internal/modules/agent/infrastructure/fetch"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileServer 按路径返回固定内容，未知路径 404
func newFileServer(files map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
}

func newTestIngest(t *testing.T, repo *fakeCollectionRepo) (*IngestPipeline, *retrieval.IndexCache) {
	t.Helper()
	indexes := retrieval.NewIndexCache(repo)
	models := &fakeModelRepo{creds: map[string]string{"mock-embed": "k"}}
	fetcher := fetch.NewFetcher(5*time.Second, t.TempDir())

	p, err := NewIngestPipeline(repo, models, indexes, fetcher, testConfig())
	require.NoError(t, err)
	p.newEmbedder = mockEmbedderFactory
	return p, indexes
}

func baseRequest(srv *httptest.Server, files ...IngestFile) IngestRequest {
	for i := range files {
		files[i].URL = srv.URL + files[i].URL
	}
	return IngestRequest{
		Name:           "kb1",
		EmbeddingModel: "mock-embed",
		ChunkStrategy:  "custom",
		ChunkSize:      50,
		ChunkOverlap:   5,
		Files:          files,
	}
}

func TestIngestSuccess(t *testing.T) {
	srv := newFileServer(map[string]string{
		"/a.txt": "知识片段甲。知识片段乙。",
		"/b.txt": "知识片段丙。",
	})
	defer srv.Close()

	repo := newFakeCollectionRepo()
	p, indexes := newTestIngest(t, repo)

	res, err := p.Ingest(context.Background(), baseRequest(srv,
		IngestFile{Name: "a.txt", URL: "/a.txt"},
		IngestFile{Name: "b.txt", URL: "/b.txt"},
	))
	require.NoError(t, err)
	assert.Equal(t, "kb1", res.Name)
	assert.Equal(t, 2, res.Files)
	assert.True(t, res.Chunks > 0)
	assert.Equal(t, testDim, res.Dim)

	col := repo.collections["kb1"]
	require.NotNil(t, col)
	assert.NotEmpty(t, col.IndexData)
	assert.NotEmpty(t, col.StoreData)
	assert.Equal(t, res.Chunks, col.ChunkCount)

	// 新索引直接进了缓存
	idx, err := indexes.Get(context.Background(), "kb1")
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, res.Chunks, idx.Len())
}

func TestIngestStrictAbortNamesFile(t *testing.T) {
	srv := newFileServer(map[string]string{"/a.txt": "内容"})
	defer srv.Close()

	repo := newFakeCollectionRepo()
	p, _ := newTestIngest(t, repo)

	_, err := p.Ingest(context.Background(), baseRequest(srv,
		IngestFile{Name: "a.txt", URL: "/a.txt"},
		IngestFile{Name: "missing.txt", URL: "/missing.txt"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt")
	assert.Nil(t, repo.collections["kb1"])
}

func TestIngestSkipBroken(t *testing.T) {
	srv := newFileServer(map[string]string{"/a.txt": "有效内容片段。"})
	defer srv.Close()

	repo := newFakeCollectionRepo()
	p, _ := newTestIngest(t, repo)

	req := baseRequest(srv,
		IngestFile{Name: "a.txt", URL: "/a.txt"},
		IngestFile{Name: "missing.txt", URL: "/missing.txt"},
	)
	req.SkipBroken = true

	res, err := p.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"missing.txt"}, res.SkippedFiles)
	assert.True(t, res.Chunks > 0)
	require.NotNil(t, repo.collections["kb1"])
}

func TestIngestHeaderFlattenPropagates(t *testing.T) {
	srv := newFileServer(map[string]string{"/staff.csv": "name,age\nalice,30\n"})
	defer srv.Close()

	p, _ := newTestIngest(t, newFakeCollectionRepo())
	var gotFlatten []bool
	orig := p.loadFile
	p.loadFile = func(path, source string, headerFlatten bool) ([]*schema.Document, error) {
		gotFlatten = append(gotFlatten, headerFlatten)
		return orig(path, source, headerFlatten)
	}

	req := baseRequest(srv, IngestFile{Name: "staff.csv", URL: "/staff.csv"})
	req.HeaderFlatten = true
	_, err := p.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, gotFlatten)
}

func TestIngestNoContent(t *testing.T) {
	srv := newFileServer(map[string]string{"/empty.txt": "   "})
	defer srv.Close()

	p, _ := newTestIngest(t, newFakeCollectionRepo())
	_, err := p.Ingest(context.Background(), baseRequest(srv, IngestFile{Name: "empty.txt", URL: "/empty.txt"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "内容")
}

func TestIngestUnsupportedStrategy(t *testing.T) {
	srv := newFileServer(map[string]string{"/a.txt": "内容"})
	defer srv.Close()

	p, _ := newTestIngest(t, newFakeCollectionRepo())
	req := baseRequest(srv, IngestFile{Name: "a.txt", URL: "/a.txt"})
	req.ChunkStrategy = "semantic"

	_, err := p.Ingest(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic")
}

func TestIngestValidation(t *testing.T) {
	p, _ := newTestIngest(t, newFakeCollectionRepo())
	ctx := context.Background()

	_, err := p.Ingest(ctx, IngestRequest{EmbeddingModel: "mock-embed", Files: []IngestFile{{Name: "a", URL: "u"}}})
	require.Error(t, err)

	_, err = p.Ingest(ctx, IngestRequest{Name: "kb", EmbeddingModel: "mock-embed"})
	require.Error(t, err)
}

func TestIngestReplaceCollection(t *testing.T) {
	srv := newFileServer(map[string]string{
		"/v1.txt": "第一版内容。",
		"/v2.txt": "第二版内容，完全不同。",
	})
	defer srv.Close()

	repo := newFakeCollectionRepo()
	p, indexes := newTestIngest(t, repo)
	ctx := context.Background()

	res1, err := p.Ingest(ctx, baseRequest(srv, IngestFile{Name: "v1.txt", URL: "/v1.txt"}))
	require.NoError(t, err)

	res2, err := p.Ingest(ctx, baseRequest(srv, IngestFile{Name: "v2.txt", URL: "/v2.txt"}))
	require.NoError(t, err)
	_ = res1

	idx, err := indexes.Get(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, res2.Chunks, idx.Len())
}

func TestDeleteCollection(t *testing.T) {
	srv := newFileServer(map[string]string{"/a.txt": "内容片段。"})
	defer srv.Close()

	repo := newFakeCollectionRepo()
	p, indexes := newTestIngest(t, repo)
	ctx := context.Background()

	_, err := p.Ingest(ctx, baseRequest(srv, IngestFile{Name: "a.txt", URL: "/a.txt"}))
	require.NoError(t, err)

	require.NoError(t, p.DeleteCollection(ctx, "kb1"))
	assert.Nil(t, repo.collections["kb1"])

	idx, err := indexes.Get(ctx, "kb1")
	require.NoError(t, err)
	assert.Nil(t, idx)

	err = p.DeleteCollection(ctx, "kb1")
	require.Error(t, err)
}
