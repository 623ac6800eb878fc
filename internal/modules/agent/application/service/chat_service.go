package service

import (
	"context"
	"strings"
	"time"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/application/dto/request"
	"LinkMind/internal/modules/agent/application/dto/respond"
	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/internal/modules/agent/infrastructure/llm"
	"LinkMind/internal/modules/agent/infrastructure/pipeline"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const optimizeSystemPrompt = "你是一名提示词工程专家。请在保留原意的前提下重写用户给出的系统提示词：" +
	"补全角色设定、能力边界与输出格式要求，使其更清晰、更可控。只输出优化后的提示词本身，不要附加解释。"

type ChatService interface {
	Chat(ctx context.Context, userID string, req request.ChatRequest) (*respond.ChatRespond, error)
	OptimizePrompt(ctx context.Context, req request.OptimizePromptRequest) (*respond.OptimizePromptRespond, error)
}

type chatService struct {
	chatPipe   *pipeline.ChatPipeline
	models     repository.ModelRepository
	modelCache *llm.ModelCache
	conf       *config.Config
}

func NewChatService(chatPipe *pipeline.ChatPipeline, models repository.ModelRepository, modelCache *llm.ModelCache, conf *config.Config) ChatService {
	return &chatService{chatPipe: chatPipe, models: models, modelCache: modelCache, conf: conf}
}

func (s *chatService) Chat(ctx context.Context, userID string, req request.ChatRequest) (*respond.ChatRespond, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, xerr.ValidationError("用户标识不能为空")
	}

	result, err := s.chatPipe.Execute(ctx, &pipeline.ChatRequest{
		UserID:   userID,
		AgentID:  req.AgentID,
		Message:  req.Message,
		ImageURL: req.ImageURL,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	})
	if err != nil {
		return nil, err
	}

	return &respond.ChatRespond{
		AgentID:    result.AgentID,
		Answer:     result.Answer,
		Retrieved:  result.Retrieved,
		QueryID:    result.QueryID,
		DurationMs: result.DurationMs,
	}, nil
}

// OptimizePrompt 用指定对话模型重写系统提示词
func (s *chatService) OptimizePrompt(ctx context.Context, req request.OptimizePromptRequest) (*respond.OptimizePromptRespond, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, xerr.ValidationError("提示词不能为空")
	}

	cred, err := s.models.GetByName(ctx, req.ModelName)
	if err != nil {
		return nil, err
	}
	apiKey := ""
	if cred != nil {
		apiKey = cred.ModelKey
	}

	cm, err := s.modelCache.Get(ctx, req.ModelName,
		apiKey,
		s.conf.AIConfig.Chat.DefaultTemperature,
		s.conf.AIConfig.Chat.DefaultMaxTokens)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	msg, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(optimizeSystemPrompt),
		schema.UserMessage(req.Prompt),
	})
	if err != nil {
		return nil, xerr.ModelInvocationError("模型调用失败: " + err.Error())
	}

	zlog.Info("提示词优化完成",
		zap.String("model", req.ModelName),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return &respond.OptimizePromptRespond{
		Original:  req.Prompt,
		Optimized: strings.TrimSpace(msg.Content),
	}, nil
}
