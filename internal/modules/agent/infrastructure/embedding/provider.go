package embedding

import (
	"context"
	"strings"
	"time"

	"LinkMind/internal/config"
	"LinkMind/pkg/xerr"

	arkEmbed "github.com/cloudwego/eino-ext/components/embedding/ark"
	dashscopeEmbed "github.com/cloudwego/eino-ext/components/embedding/dashscope"
	openaIEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

type EmbedderMeta struct {
	Provider string
	Model    string
	Dim      int
}

// NewEmbedderForModel 按模型名前缀选择向量化 provider
// text-embedding-v* 走 dashscope，text-embedding-3* 走 openai，doubao-embedding* 走 ark
// 同一集合写入与查询必须使用同一模型名，否则维度与语义空间都不可比
func NewEmbedderForModel(ctx context.Context, modelName, apiKey string, conf *config.Config) (embedding.Embedder, EmbedderMeta, error) {
	modelName = strings.TrimSpace(modelName)
	apiKey = strings.TrimSpace(apiKey)
	if modelName == "" {
		return nil, EmbedderMeta{}, xerr.ValidationError("向量模型名不能为空")
	}

	dim := conf.AIConfig.Embedding.Dimensions
	timeout := time.Duration(conf.AIConfig.Embedding.TimeoutSeconds) * time.Second

	switch {
	case strings.HasPrefix(modelName, "text-embedding-v"):
		localDim := dim
		de, err := dashscopeEmbed.NewEmbedder(ctx, &dashscopeEmbed.EmbeddingConfig{
			Model:      modelName,
			APIKey:     apiKey,
			Dimensions: &localDim,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return de, EmbedderMeta{Provider: "dashscope", Model: modelName, Dim: dim}, nil

	case strings.HasPrefix(modelName, "text-embedding-3"):
		localDim := dim
		em, err := openaIEmbed.NewEmbedder(ctx, &openaIEmbed.EmbeddingConfig{
			APIKey:     apiKey,
			Model:      modelName,
			BaseURL:    strings.TrimSpace(conf.AIConfig.Embedding.OpenAIBaseURL),
			Timeout:    timeout,
			Dimensions: &localDim,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return em, EmbedderMeta{Provider: "openai", Model: modelName, Dim: dim}, nil

	case strings.HasPrefix(modelName, "doubao-embedding"):
		em, err := arkEmbed.NewEmbedder(ctx, &arkEmbed.EmbeddingConfig{
			APIKey:  apiKey,
			Model:   modelName,
			BaseURL: strings.TrimSpace(conf.AIConfig.Embedding.ArkBaseURL),
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return em, EmbedderMeta{Provider: "ark", Model: modelName, Dim: dim}, nil

	case strings.HasPrefix(modelName, "mock"):
		return NewMockEmbedder(dim), EmbedderMeta{Provider: "mock", Model: modelName, Dim: dim}, nil

	default:
		return nil, EmbedderMeta{}, xerr.UnsupportedModel(modelName)
	}
}
