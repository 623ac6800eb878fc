package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"LinkMind/internal/modules/agent/infrastructure/fetch"
	"LinkMind/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchServer(t *testing.T, status int, body string) *ContextTools {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	ct := NewContextTools(2*time.Second, nil)
	ct.searchURL = srv.URL
	return ct
}

func TestSearchInternetParsesResults(t *testing.T) {
	body := `<html><body>
<a class="result__a" href="#">Go <b>语言</b>教程</a>
<a class="result__a" href="#">并发模式</a>
<a class="other">噪声</a>
</body></html>`
	ct := newSearchServer(t, http.StatusOK, body)

	got, err := ct.SearchInternet(context.Background(), "golang")
	require.NoError(t, err)
	assert.Contains(t, got, "1. Go 语言教程")
	assert.Contains(t, got, "2. 并发模式")
	assert.NotContains(t, got, "噪声")
}

func TestSearchInternetNoResults(t *testing.T) {
	ct := newSearchServer(t, http.StatusOK, "<html><body>empty</body></html>")

	got, err := ct.SearchInternet(context.Background(), "golang")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchInternetBadStatus(t *testing.T) {
	ct := newSearchServer(t, http.StatusServiceUnavailable, "")

	_, err := ct.SearchInternet(context.Background(), "golang")
	require.Error(t, err)
	ce, ok := err.(*xerr.CodeError)
	require.True(t, ok)
	assert.Equal(t, xerr.CodeFetch, ce.Code)
}

func TestSearchToolInvokableRun(t *testing.T) {
	ct := newSearchServer(t, http.StatusOK, `<a class="result__a" href="#">结果一</a>`)
	st := NewSearchTool(ct)

	info, err := st.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "internet_search", info.Name)

	out, err := st.InvokableRun(context.Background(), `{"query":"测试"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "结果一")

	_, err = st.InvokableRun(context.Background(), `{"query":"  "}`)
	assert.Error(t, err)

	_, err = st.InvokableRun(context.Background(), `not-json`)
	assert.Error(t, err)
}

func TestReadRemoteFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("第一段内容\n第二段内容"))
	}))
	defer srv.Close()

	fetcher := fetch.NewFetcher(2*time.Second, t.TempDir())
	ct := NewContextTools(2*time.Second, fetcher)

	got, err := ct.ReadRemoteFile(context.Background(), srv.URL+"/doc.txt", "doc.txt")
	require.NoError(t, err)
	assert.Contains(t, got, "第一段内容")
	assert.Contains(t, got, "第二段内容")
}
