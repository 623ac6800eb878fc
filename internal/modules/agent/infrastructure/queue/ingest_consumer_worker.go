package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"LinkMind/internal/modules/agent/infrastructure/mq"
	"LinkMind/internal/modules/agent/infrastructure/pipeline"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"go.uber.org/zap"
)

// Ingester 消费端复用的入库入口，和同步接口走同一条加锁路径
type Ingester interface {
	RunIngest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
}

// IngestConsumerWorker 消费入库任务并执行知识库重建
type IngestConsumerWorker struct {
	consumer mq.Consumer
	ingester Ingester
}

func NewIngestConsumerWorker(consumer mq.Consumer, ingester Ingester) *IngestConsumerWorker {
	return &IngestConsumerWorker{consumer: consumer, ingester: ingester}
}

func (w *IngestConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.ingester == nil {
		return errors.New("ingester is nil")
	}
	return w.consumer.Run(ctx, w)
}

// Handle 坏消息丢弃不重试，执行失败返回错误交由消费组重投
func (w *IngestConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	var req pipeline.IngestRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		zlog.Warn("入库任务消息格式非法，已丢弃", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}
	if strings.TrimSpace(req.Name) == "" {
		zlog.Warn("入库任务缺少知识库名称，已丢弃", zap.String("topic", msg.Topic))
		return nil
	}

	result, err := w.ingester.RunIngest(ctx, req)
	if err != nil {
		// 参数类错误重试也不会成功，只记录；其余错误返回触发重投
		if ce, ok := err.(*xerr.CodeError); ok && ce.Code != xerr.CodeModelInvocation && ce.Code != xerr.CodeFetch {
			zlog.Warn("入库任务执行失败，已丢弃",
				zap.String("collection", req.Name),
				zap.Int("code", ce.Code),
				zap.String("error", ce.Message))
			return nil
		}
		zlog.Warn("入库任务执行失败，等待重投", zap.String("collection", req.Name), zap.Error(err))
		return err
	}

	zlog.Info("入库任务执行完成",
		zap.String("collection", result.Name),
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
		zap.Int64("duration_ms", result.DurationMs))
	return nil
}
