package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"LinkMind/internal/modules/agent/infrastructure/fetch"
	"LinkMind/internal/modules/agent/infrastructure/loader"
	"LinkMind/pkg/xerr"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	searchEndpoint   = "https://html.duckduckgo.com/html/"
	maxSearchResults = 5
	maxFileChars     = 4000
)

// ContextTools 对话编排可选的上下文补充工具：联网搜索与附件文件读取
type ContextTools struct {
	client    *http.Client
	fetcher   *fetch.Fetcher
	searchURL string
}

func NewContextTools(timeout time.Duration, fetcher *fetch.Fetcher) *ContextTools {
	return &ContextTools{
		client:    &http.Client{Timeout: timeout},
		fetcher:   fetcher,
		searchURL: searchEndpoint,
	}
}

var searchResultRe = regexp.MustCompile(`<a[^>]+class="result__a"[^>]*>(.*?)</a>`)
var tagRe = regexp.MustCompile(`<[^>]+>`)

// SearchInternet 联网搜索，返回前若干条结果标题拼接的摘要文本
func (t *ContextTools) SearchInternet(ctx context.Context, query string) (string, error) {
	q := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 LinkMind")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", xerr.FetchError(fmt.Sprintf("联网搜索失败: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", xerr.FetchError(fmt.Sprintf("联网搜索失败: 状态码 %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	matches := searchResultRe.FindAllStringSubmatch(string(body), maxSearchResults)
	var lines []string
	for i, m := range matches {
		title := strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(m[1], "")))
		if title != "" {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n"), nil
}

// ReadRemoteFile 下载并解析用户附件，返回截断后的正文文本
func (t *ContextTools) ReadRemoteFile(ctx context.Context, fileURL, fileName string) (string, error) {
	path, cleanup, err := t.fetcher.Download(ctx, fileURL, fileName)
	if err != nil {
		return "", err
	}
	defer cleanup()

	docs, err := loader.LoadFile(path, fileName, false)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, d := range docs {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.Content)
		if sb.Len() >= maxFileChars {
			break
		}
	}
	content := sb.String()
	if runes := []rune(content); len(runes) > maxFileChars {
		content = string(runes[:maxFileChars])
	}
	return content, nil
}

// SearchTool 把联网搜索包装为模型可调用的工具
type SearchTool struct {
	inner *ContextTools
}

func NewSearchTool(inner *ContextTools) *SearchTool {
	return &SearchTool{inner: inner}
}

func (s *SearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "internet_search",
		Desc: "联网搜索，输入查询关键词，返回搜索结果摘要",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "搜索关键词",
				Required: true,
			},
		}),
	}, nil
}

func (s *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", xerr.ValidationError("搜索关键词不能为空")
	}
	return s.inner.SearchInternet(ctx, args.Query)
}

var _ tool.InvokableTool = (*SearchTool)(nil)
