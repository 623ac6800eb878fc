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

// KnowledgeHandler 知识库HTTP Handler
type KnowledgeHandler struct {
	svc service.KnowledgeService
}

func NewKnowledgeHandler(svc service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// CreateCollection 创建/重建知识库
//
// 路由: POST /knowledge/collections
// 鉴权: 需要JWT
// 请求体: CreateCollectionRequest，async=true 时投递消息队列异步执行
func (h *KnowledgeHandler) CreateCollection(c *gin.Context) {
	var req request.CreateCollectionRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("create collection bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	if req.Async {
		data, err := h.svc.EnqueueCollection(c.Request.Context(), req)
		if err != nil {
			zlog.Error("enqueue collection failed", zap.Error(err), zap.String("name", req.Name))
		}
		back.Result(c, data, err)
		return
	}

	data, err := h.svc.CreateCollection(c.Request.Context(), req)
	if err != nil {
		zlog.Error("create collection failed", zap.Error(err), zap.String("name", req.Name))
	}
	back.Result(c, data, err)
}

// IngestAsync 异步入库（不论 async 标志，总是投递消息队列）
//
// 路由: POST /knowledge/ingestAsync
func (h *KnowledgeHandler) IngestAsync(c *gin.Context) {
	var req request.CreateCollectionRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("ingest async bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.EnqueueCollection(c.Request.Context(), req)
	if err != nil {
		zlog.Error("enqueue collection failed", zap.Error(err), zap.String("name", req.Name))
	}
	back.Result(c, data, err)
}

// ListCollections 知识库列表
//
// 路由: GET /knowledge/collections
func (h *KnowledgeHandler) ListCollections(c *gin.Context) {
	data, err := h.svc.ListCollections(c.Request.Context())
	if err != nil {
		zlog.Error("list collections failed", zap.Error(err))
	}
	back.Result(c, data, err)
}

// DeleteCollection 删除知识库
//
// 路由: DELETE /knowledge/collections/:name
func (h *KnowledgeHandler) DeleteCollection(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		back.Error(c, xerr.BadRequest, "name is required")
		return
	}

	err := h.svc.DeleteCollection(c.Request.Context(), name)
	if err != nil {
		zlog.Error("delete collection failed", zap.Error(err), zap.String("name", name))
	}
	back.Result(c, nil, err)
}

// Retrieve 跨知识库检索
//
// 路由: POST /knowledge/retrieve
func (h *KnowledgeHandler) Retrieve(c *gin.Context) {
	var req request.RetrieveRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("retrieve bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.Retrieve(c.Request.Context(), req)
	if err != nil {
		zlog.Error("retrieve failed", zap.Error(err), zap.String("query", req.Query))
	}
	back.Result(c, data, err)
}
