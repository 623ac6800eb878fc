package service

import (
	"context"
	"time"

	"LinkMind/internal/modules/agent/application/dto/request"
	"LinkMind/internal/modules/agent/application/dto/respond"
	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/pkg/util"
	"LinkMind/pkg/xerr"
)

type AgentService interface {
	CreateAgent(ctx context.Context, req request.CreateAgentRequest) (*respond.AgentItem, error)
	UpdateAgent(ctx context.Context, req request.UpdateAgentRequest) error
	GetAgent(ctx context.Context, agentID string) (*respond.AgentItem, error)
	ListAgents(ctx context.Context) ([]respond.AgentItem, error)
	CreateModel(ctx context.Context, req request.CreateModelRequest) error
	ListModels(ctx context.Context) ([]respond.ModelItem, error)
}

type agentService struct {
	agents repository.AgentRepository
	models repository.ModelRepository
}

func NewAgentService(agents repository.AgentRepository, models repository.ModelRepository) AgentService {
	return &agentService{agents: agents, models: models}
}

func (s *agentService) CreateAgent(ctx context.Context, req request.CreateAgentRequest) (*respond.AgentItem, error) {
	now := time.Now()
	agent := &entity.AgentConfig{
		AgentId:          util.GenerateUUID(),
		AgentName:        req.AgentName,
		AgentState:       req.AgentState,
		LlmApi:           req.LlmApi,
		LlmPrompt:        req.LlmPrompt,
		LlmImage:         defaultToggle(req.LlmImage),
		LlmKnowledge:     req.LlmKnowledge,
		LlmFile:          defaultToggle(req.LlmFile),
		LlmInternet:      defaultToggle(req.LlmInternet),
		LlmMemory:        defaultToggle(req.LlmMemory),
		LlmMaxReplyLen:   req.LlmMaxReplyLen,
		LlmContextRounds: req.LlmContextRounds,
		LlmTemperature:   req.LlmTemperature,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.agents.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	item := toAgentItem(agent)
	return &item, nil
}

func (s *agentService) UpdateAgent(ctx context.Context, req request.UpdateAgentRequest) error {
	existing, err := s.agents.GetByAgentID(ctx, req.AgentID)
	if err != nil {
		return err
	}
	if existing == nil {
		return xerr.NotFoundError("智能体不存在: " + req.AgentID)
	}

	existing.AgentName = req.AgentName
	existing.AgentState = req.AgentState
	existing.LlmApi = req.LlmApi
	existing.LlmPrompt = req.LlmPrompt
	existing.LlmImage = defaultToggle(req.LlmImage)
	existing.LlmKnowledge = req.LlmKnowledge
	existing.LlmFile = defaultToggle(req.LlmFile)
	existing.LlmInternet = defaultToggle(req.LlmInternet)
	existing.LlmMemory = defaultToggle(req.LlmMemory)
	existing.LlmMaxReplyLen = req.LlmMaxReplyLen
	existing.LlmContextRounds = req.LlmContextRounds
	existing.LlmTemperature = req.LlmTemperature
	existing.UpdatedAt = time.Now()
	return s.agents.UpdateAgent(ctx, existing)
}

func (s *agentService) GetAgent(ctx context.Context, agentID string) (*respond.AgentItem, error) {
	agent, err := s.agents.GetByAgentID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, xerr.NotFoundError("智能体不存在: " + agentID)
	}
	item := toAgentItem(agent)
	return &item, nil
}

func (s *agentService) ListAgents(ctx context.Context) ([]respond.AgentItem, error) {
	agents, err := s.agents.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]respond.AgentItem, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentItem(a))
	}
	return out, nil
}

// CreateModel 登记模型凭证，同名模型覆盖旧密钥
func (s *agentService) CreateModel(ctx context.Context, req request.CreateModelRequest) error {
	now := time.Now()
	return s.models.CreateModel(ctx, &entity.ModelCredential{
		ModelName: req.ModelName,
		ModelKey:  req.ModelKey,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *agentService) ListModels(ctx context.Context) ([]respond.ModelItem, error) {
	models, err := s.models.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]respond.ModelItem, 0, len(models))
	for _, m := range models {
		out = append(out, respond.ModelItem{ModelName: m.ModelName})
	}
	return out, nil
}

func defaultToggle(v string) string {
	if v == "" {
		return "n"
	}
	return v
}

func toAgentItem(a *entity.AgentConfig) respond.AgentItem {
	return respond.AgentItem{
		AgentID:          a.AgentId,
		AgentName:        a.AgentName,
		AgentState:       a.AgentState,
		LlmApi:           a.LlmApi,
		LlmPrompt:        a.LlmPrompt,
		LlmImage:         a.LlmImage,
		LlmKnowledge:     a.LlmKnowledge,
		LlmFile:          a.LlmFile,
		LlmInternet:      a.LlmInternet,
		LlmMemory:        a.LlmMemory,
		LlmMaxReplyLen:   a.LlmMaxReplyLen,
		LlmContextRounds: a.LlmContextRounds,
		LlmTemperature:   a.LlmTemperature,
	}
}
