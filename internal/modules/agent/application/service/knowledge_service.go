package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/application/dto/request"
	"LinkMind/internal/modules/agent/application/dto/respond"
	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/internal/modules/agent/infrastructure/mq"
	"LinkMind/internal/modules/agent/infrastructure/pipeline"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"
	"LinkMind/pkg/redis"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"go.uber.org/zap"
)

const ingestLockPrefix = "linkmind:ingest_lock:"

type KnowledgeService interface {
	CreateCollection(ctx context.Context, req request.CreateCollectionRequest) (*pipeline.IngestResult, error)
	EnqueueCollection(ctx context.Context, req request.CreateCollectionRequest) (*respond.AsyncIngestRespond, error)
	// RunIngest 持锁执行入库，消息队列消费端复用同一条路径
	RunIngest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
	ListCollections(ctx context.Context) ([]respond.CollectionItem, error)
	DeleteCollection(ctx context.Context, name string) error
	Retrieve(ctx context.Context, req request.RetrieveRequest) (*respond.RetrieveRespond, error)
}

type knowledgeService struct {
	ingestPipe  *pipeline.IngestPipeline
	retriever   *retrieval.Retriever
	collections repository.CollectionRepository
	publisher   mq.Publisher
	conf        *config.Config

	// redis 不可用时的进程内锁兜底
	localLocks sync.Map
}

func NewKnowledgeService(ingestPipe *pipeline.IngestPipeline, retriever *retrieval.Retriever, collections repository.CollectionRepository, publisher mq.Publisher, conf *config.Config) KnowledgeService {
	return &knowledgeService{
		ingestPipe:  ingestPipe,
		retriever:   retriever,
		collections: collections,
		publisher:   publisher,
		conf:        conf,
	}
}

// CreateCollection 同步重建知识库，同名集合持锁串行
func (s *knowledgeService) CreateCollection(ctx context.Context, req request.CreateCollectionRequest) (*pipeline.IngestResult, error) {
	return s.RunIngest(ctx, toIngestRequest(req))
}

func (s *knowledgeService) RunIngest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, xerr.ValidationError("知识库名称不能为空")
	}
	req.Name = name

	release, err := s.acquireLock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.ingestPipe.Ingest(ctx, req)
}

// EnqueueCollection 投递入库任务到消息队列，由消费端执行
func (s *knowledgeService) EnqueueCollection(ctx context.Context, req request.CreateCollectionRequest) (*respond.AsyncIngestRespond, error) {
	if s.publisher == nil {
		return nil, xerr.New(xerr.InternalServerError, "异步入库未启用")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, xerr.ValidationError("知识库名称不能为空")
	}

	payload, err := json.Marshal(toIngestRequest(req))
	if err != nil {
		return nil, err
	}
	result, err := s.publisher.Publish(ctx, mq.Message{
		Topic: s.conf.KafkaConfig.IngestTopic,
		Key:   []byte(name),
		Value: payload,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info("入库任务已投递",
		zap.String("collection", name),
		zap.Int32("partition", result.Partition),
		zap.Int64("offset", result.Offset))
	return &respond.AsyncIngestRespond{Name: name, Accepted: true}, nil
}

func (s *knowledgeService) ListCollections(ctx context.Context) ([]respond.CollectionItem, error) {
	cols, err := s.collections.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]respond.CollectionItem, 0, len(cols))
	for _, c := range cols {
		out = append(out, respond.CollectionItem{
			Name:           c.Name,
			Description:    c.Description,
			EmbeddingModel: c.EmbeddingModel,
			ChunkStrategy:  c.ChunkStrategy,
			ChunkSize:      c.ChunkSize,
			ChunkOverlap:   c.ChunkOverlap,
			Similarity:     c.Similarity,
			FileList:       c.FileListJson,
			ChunkCount:     c.ChunkCount,
			Dim:            c.Dim,
			UpdatedAt:      c.UpdatedAt.Format(time.DateTime),
		})
	}
	return out, nil
}

func (s *knowledgeService) DeleteCollection(ctx context.Context, name string) error {
	return s.ingestPipe.DeleteCollection(ctx, name)
}

func (s *knowledgeService) Retrieve(ctx context.Context, req request.RetrieveRequest) (*respond.RetrieveRespond, error) {
	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, req.Collections, req.Query, req.TopK)
	if err != nil {
		return nil, err
	}

	hits := make([]respond.RetrieveHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, respond.RetrieveHit{
			Content: r.Chunk.Content,
			Source:  r.Chunk.Source,
			Score:   r.Score,
		})
	}
	return &respond.RetrieveRespond{
		Query:         req.Query,
		Hits:          hits,
		ReturnedCount: len(hits),
		IsEmpty:       len(hits) == 0,
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// acquireLock 优先走 redis 分布式锁，未连接时退化为进程内锁
func (s *knowledgeService) acquireLock(ctx context.Context, name string) (func(), error) {
	ttl := time.Duration(s.conf.AIConfig.Ingest.LockTimeoutSeconds) * time.Second
	key := ingestLockPrefix + name

	if redis.IsConnected() {
		ok, err := redis.Lock(ctx, key, ttl)
		if err != nil {
			zlog.Warn("获取分布式锁失败，退化为进程内锁", zap.String("collection", name), zap.Error(err))
		} else if !ok {
			return nil, xerr.ValidationError("该知识库正在重建中: " + name)
		} else {
			return func() {
				if err := redis.Unlock(context.Background(), key); err != nil {
					zlog.Warn("释放分布式锁失败", zap.String("collection", name), zap.Error(err))
				}
			}, nil
		}
	}

	if _, loaded := s.localLocks.LoadOrStore(key, struct{}{}); loaded {
		return nil, xerr.ValidationError("该知识库正在重建中: " + name)
	}
	return func() { s.localLocks.Delete(key) }, nil
}

func toIngestRequest(req request.CreateCollectionRequest) pipeline.IngestRequest {
	files := make([]pipeline.IngestFile, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, pipeline.IngestFile{Name: f.Name, URL: f.URL})
	}
	return pipeline.IngestRequest{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		EmbeddingModel: req.EmbeddingModel,
		ChunkStrategy:  req.ChunkStrategy,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
		BoundaryMarker: req.BoundaryMarker,
		Similarity:     req.Similarity,
		Files:          files,
		SkipBroken:     req.SkipBroken,
		HeaderFlatten:  req.HeaderFlatten,
	}
}
