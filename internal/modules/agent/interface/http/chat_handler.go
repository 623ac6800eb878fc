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

// ChatHandler 对话编排HTTP Handler
type ChatHandler struct {
	svc service.ChatService
}

func NewChatHandler(svc service.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat 执行一次对话
//
// 路由: POST /chat
// 鉴权: 需要JWT，用户标识取自token
func (h *ChatHandler) Chat(c *gin.Context) {
	var req request.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("chat bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}

	data, err := h.svc.Chat(c.Request.Context(), uuid, req)
	if err != nil {
		zlog.Error("chat failed", zap.Error(err), zap.String("uuid", uuid), zap.String("agent_id", req.AgentID))
	}
	back.Result(c, data, err)
}

// OptimizePrompt 提示词优化
//
// 路由: POST /chat/optimize-prompt
func (h *ChatHandler) OptimizePrompt(c *gin.Context) {
	var req request.OptimizePromptRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("optimize prompt bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.OptimizePrompt(c.Request.Context(), req)
	if err != nil {
		zlog.Error("optimize prompt failed", zap.Error(err), zap.String("model", req.ModelName))
	}
	back.Result(c, data, err)
}
