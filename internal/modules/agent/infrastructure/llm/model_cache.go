package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"LinkMind/internal/config"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
)

// openai 兼容端点
const (
	dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	deepseekBaseURL  = "https://api.deepseek.com/v1"
)

const defaultCacheCap = 64

// ModelCache 对话模型实例缓存
// 以 (模型名, 凭证, 温度, 最大回复长度) 四元组为键，同参请求复用同一实例
type ModelCache struct {
	mu    sync.Mutex
	cache map[string]model.BaseChatModel
	cap   int
	conf  *config.Config

	// 构造函数可替换，测试时注入
	build BuildFunc
}

// BuildFunc 模型实例构造函数
type BuildFunc func(ctx context.Context, modelName, apiKey string, temperature float32, maxTokens int) (model.BaseChatModel, error)

func NewModelCache(conf *config.Config) *ModelCache {
	c := &ModelCache{
		cache: make(map[string]model.BaseChatModel),
		cap:   defaultCacheCap,
		conf:  conf,
	}
	c.build = c.buildChatModel
	return c
}

// NewModelCacheWithBuilder 注入自定义构造函数
func NewModelCacheWithBuilder(conf *config.Config, build BuildFunc) *ModelCache {
	c := NewModelCache(conf)
	c.build = build
	return c
}

func cacheKey(modelName, apiKey string, temperature float32, maxTokens int) string {
	return fmt.Sprintf("%s|%s|%.4f|%d", modelName, apiKey, temperature, maxTokens)
}

// Get 返回缓存的模型实例，未命中时构造并缓存
// 未知模型家族返回 UnsupportedModel，构造失败不会写入缓存
func (c *ModelCache) Get(ctx context.Context, modelName, apiKey string, temperature float32, maxTokens int) (model.BaseChatModel, error) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return nil, xerr.ValidationError("模型名不能为空")
	}

	key := cacheKey(modelName, apiKey, temperature, maxTokens)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cm, ok := c.cache[key]; ok {
		return cm, nil
	}

	cm, err := c.build(ctx, modelName, apiKey, temperature, maxTokens)
	if err != nil {
		return nil, err
	}

	if len(c.cache) >= c.cap {
		zlog.Warn("模型缓存已满，整体清空", zap.Int("cap", c.cap))
		c.cache = make(map[string]model.BaseChatModel)
	}
	c.cache[key] = cm
	zlog.Info("模型实例已创建并缓存",
		zap.String("model", modelName),
		zap.Float32("temperature", temperature),
		zap.Int("maxTokens", maxTokens))
	return cm, nil
}

// Len 当前缓存的实例数
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Clear 清空缓存，关停时调用
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]model.BaseChatModel)
}

// buildChatModel 按模型名前缀分派家族
// qwen* 与 deepseek* 走各自的 openai 兼容端点，doubao* 走 ark
func (c *ModelCache) buildChatModel(ctx context.Context, modelName, apiKey string, temperature float32, maxTokens int) (model.BaseChatModel, error) {
	timeout := time.Duration(c.conf.AIConfig.Chat.TimeoutSeconds) * time.Second

	switch {
	case strings.HasPrefix(modelName, "qwen"):
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:      apiKey,
			Model:       modelName,
			BaseURL:     dashscopeBaseURL,
			Timeout:     timeout,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})

	case strings.HasPrefix(modelName, "deepseek"):
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:      apiKey,
			Model:       modelName,
			BaseURL:     deepseekBaseURL,
			Timeout:     timeout,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})

	case strings.HasPrefix(modelName, "doubao"):
		return arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:      apiKey,
			Model:       modelName,
			Timeout:     &timeout,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})

	default:
		return nil, xerr.UnsupportedModel(modelName)
	}
}
