package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"go.uber.org/zap"
)

// Fetcher 将远程文件下载到临时目录，供解析器按路径读取
type Fetcher struct {
	client  *http.Client
	tempDir string
}

func NewFetcher(timeout time.Duration, tempDir string) *Fetcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		tempDir: tempDir,
	}
}

// Download 下载 url 到临时文件，返回本地路径与清理函数
// 清理函数必须被调用，下载失败时内部已完成清理
func (f *Fetcher) Download(ctx context.Context, url, fileName string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, xerr.FetchError(fmt.Sprintf("下载请求构造失败: %s: %v", fileName, err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, xerr.FetchError(fmt.Sprintf("下载文件失败: %s: %v", fileName, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, xerr.FetchError(fmt.Sprintf("下载文件失败: %s: 状态码 %d", fileName, resp.StatusCode))
	}

	tmp, err := os.CreateTemp(f.tempDir, "ingest-*"+filepath.Ext(fileName))
	if err != nil {
		return "", nil, xerr.FetchError(fmt.Sprintf("创建临时文件失败: %v", err))
	}
	path := tmp.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zlog.Warn("清理临时文件失败", zap.String("path", path), zap.Error(err))
		}
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, xerr.FetchError(fmt.Sprintf("写入临时文件失败: %s: %v", fileName, err))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, xerr.FetchError(fmt.Sprintf("写入临时文件失败: %s: %v", fileName, err))
	}
	return path, cleanup, nil
}
