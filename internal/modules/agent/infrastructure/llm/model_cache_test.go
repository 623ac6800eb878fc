package llm

import (
	"context"
	"testing"

	"LinkMind/internal/config"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct{ name string }

func (s *stubChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("ok", nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func newTestCache(t *testing.T) (*ModelCache, *int) {
	t.Helper()
	builds := 0
	c := NewModelCache(&config.Config{})
	c.build = func(ctx context.Context, modelName, apiKey string, temperature float32, maxTokens int) (model.BaseChatModel, error) {
		builds++
		return &stubChatModel{name: modelName}, nil
	}
	return c, &builds
}

func TestGetReusesSameTuple(t *testing.T) {
	c, builds := newTestCache(t)
	ctx := context.Background()

	m1, err := c.Get(ctx, "qwen-max", "key1", 0.5, 1024)
	require.NoError(t, err)
	m2, err := c.Get(ctx, "qwen-max", "key1", 0.5, 1024)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, *builds)
	assert.Equal(t, 1, c.Len())
}

func TestGetDistinctTuples(t *testing.T) {
	c, builds := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "qwen-max", "key1", 0.5, 1024)
	require.NoError(t, err)
	_, err = c.Get(ctx, "qwen-max", "key1", 0.7, 1024)
	require.NoError(t, err)
	_, err = c.Get(ctx, "qwen-max", "key2", 0.5, 1024)
	require.NoError(t, err)
	_, err = c.Get(ctx, "qwen-max", "key1", 0.5, 512)
	require.NoError(t, err)

	assert.Equal(t, 4, *builds)
	assert.Equal(t, 4, c.Len())
}

func TestGetUnsupportedModel(t *testing.T) {
	c := NewModelCache(&config.Config{})
	_, err := c.Get(context.Background(), "gpt-99", "key", 0.5, 1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpt-99")
	assert.Equal(t, 0, c.Len())
}

func TestGetEmptyModelName(t *testing.T) {
	c := NewModelCache(&config.Config{})
	_, err := c.Get(context.Background(), "  ", "key", 0.5, 1024)
	require.Error(t, err)
}

func TestCacheCapFlush(t *testing.T) {
	c, _ := newTestCache(t)
	c.cap = 2
	ctx := context.Background()

	_, err := c.Get(ctx, "qwen-a", "k", 0.1, 1)
	require.NoError(t, err)
	_, err = c.Get(ctx, "qwen-b", "k", 0.1, 1)
	require.NoError(t, err)
	_, err = c.Get(ctx, "qwen-c", "k", 0.1, 1)
	require.NoError(t, err)

	// 超过容量时整体清空后再写入
	assert.Equal(t, 1, c.Len())
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "qwen-a", "k", 0.1, 1)
	require.NoError(t, err)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
