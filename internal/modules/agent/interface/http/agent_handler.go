package http

import (
	"strings"

	"LinkMind/internal/modules/agent/application/dto/request"
	"LinkMind/internal/modules/agent/application/service"
	"LinkMind/pkg/back"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AgentHandler 智能体与模型凭证HTTP Handler
type AgentHandler struct {
	svc service.AgentService
}

func NewAgentHandler(svc service.AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// CreateAgent 创建智能体
//
// 路由: POST /agents
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	var req request.CreateAgentRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("create agent bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.CreateAgent(c.Request.Context(), req)
	if err != nil {
		zlog.Error("create agent failed", zap.Error(err), zap.String("agent_name", req.AgentName))
	}
	back.Result(c, data, err)
}

// UpdateAgent 更新智能体
//
// 路由: PUT /agents
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	var req request.UpdateAgentRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("update agent bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	err := h.svc.UpdateAgent(c.Request.Context(), req)
	if err != nil {
		zlog.Error("update agent failed", zap.Error(err), zap.String("agent_id", req.AgentID))
	}
	back.Result(c, nil, err)
}

// GetAgent 查询智能体
//
// 路由: GET /agents/:agent_id
func (h *AgentHandler) GetAgent(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("agent_id"))
	if agentID == "" {
		back.Error(c, xerr.BadRequest, "agent_id is required")
		return
	}

	data, err := h.svc.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		zlog.Error("get agent failed", zap.Error(err), zap.String("agent_id", agentID))
	}
	back.Result(c, data, err)
}

// ListAgents 智能体列表
//
// 路由: GET /agents
func (h *AgentHandler) ListAgents(c *gin.Context) {
	data, err := h.svc.ListAgents(c.Request.Context())
	if err != nil {
		zlog.Error("list agents failed", zap.Error(err))
	}
	back.Result(c, data, err)
}

// CreateModel 登记模型凭证
//
// 路由: POST /models
func (h *AgentHandler) CreateModel(c *gin.Context) {
	var req request.CreateModelRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("create model bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	err := h.svc.CreateModel(c.Request.Context(), req)
	if err != nil {
		zlog.Error("create model failed", zap.Error(err), zap.String("model_name", req.ModelName))
	}
	back.Result(c, nil, err)
}

// ListModels 模型凭证列表（不回传密钥）
//
// 路由: GET /models
func (h *AgentHandler) ListModels(c *gin.Context) {
	data, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		zlog.Error("list models failed", zap.Error(err))
	}
	back.Result(c, data, err)
}
