package http

import (
	"context"
	"time"

	"LinkMind/internal/config"
	"LinkMind/internal/initial"
	jwtMiddleware "LinkMind/internal/middleware/jwt"
	"LinkMind/internal/modules/agent/application/service"
	"LinkMind/internal/modules/agent/infrastructure/fetch"
	"LinkMind/internal/modules/agent/infrastructure/llm"
	"LinkMind/internal/modules/agent/infrastructure/memory"
	"LinkMind/internal/modules/agent/infrastructure/mq"
	"LinkMind/internal/modules/agent/infrastructure/mq/kafka"
	"LinkMind/internal/modules/agent/infrastructure/persistence"
	"LinkMind/internal/modules/agent/infrastructure/pipeline"
	"LinkMind/internal/modules/agent/infrastructure/queue"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"
	"LinkMind/internal/modules/agent/infrastructure/tools"
	agentHandler "LinkMind/internal/modules/agent/interface/http"
	"LinkMind/pkg/redis"
	"LinkMind/pkg/ssl"
	"LinkMind/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var GE *gin.Engine

var (
	convCache    *memory.ConversationCache
	modelCache   *llm.ModelCache
	publisher    mq.Publisher
	consumer     mq.Consumer
	knowledgeSvc service.KnowledgeService
)

func init() {
	conf := config.GetConfig()

	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))

	collectionRepo := persistence.NewCollectionRepository(initial.GormDB)
	agentRepo := persistence.NewAgentRepository(initial.GormDB)
	modelRepo := persistence.NewModelRepository(initial.GormDB)
	conversationRepo := persistence.NewConversationRepository(initial.GormDB)

	fetcher := fetch.NewFetcher(time.Duration(conf.AIConfig.Ingest.FetchTimeoutSeconds)*time.Second, conf.AIConfig.Ingest.TempDir)
	indexCache := retrieval.NewIndexCache(collectionRepo)
	retriever := retrieval.NewRetriever(collectionRepo, modelRepo, indexCache, conf)
	modelCache = llm.NewModelCache(conf)
	convCache = memory.NewConversationCache(conversationRepo, 256)
	ctxTools := tools.NewContextTools(time.Duration(conf.AIConfig.Chat.ToolTimeoutSeconds)*time.Second, fetcher)

	ingestPipe, err := pipeline.NewIngestPipeline(collectionRepo, modelRepo, indexCache, fetcher, conf)
	if err != nil {
		zlog.Fatal("入库管线初始化失败: " + err.Error())
	}
	chatPipe, err := pipeline.NewChatPipeline(agentRepo, modelRepo, retriever, convCache, modelCache, ctxTools, conf)
	if err != nil {
		zlog.Fatal("对话管线初始化失败: " + err.Error())
	}

	// Kafka 未配置时同步入库仍可用，仅异步入口关闭
	if len(conf.KafkaConfig.Brokers) > 0 {
		p, err := kafka.NewPublisher(conf.KafkaConfig.Brokers, conf.KafkaConfig.ClientID)
		if err != nil {
			zlog.Error("Kafka producer 初始化失败，异步入库不可用", zap.Error(err))
		} else {
			publisher = p
		}
	}

	knowledgeSvc = service.NewKnowledgeService(ingestPipe, retriever, collectionRepo, publisher, conf)
	agentSvc := service.NewAgentService(agentRepo, modelRepo)
	chatSvc := service.NewChatService(chatPipe, modelRepo, modelCache, conf)

	knowledgeH := agentHandler.NewKnowledgeHandler(knowledgeSvc)
	agentH := agentHandler.NewAgentHandler(agentSvc)
	chatH := agentHandler.NewChatHandler(chatSvc)

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth())
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
		})
	})

	authed.POST("/knowledge/collections", knowledgeH.CreateCollection)
	authed.POST("/knowledge/ingestAsync", knowledgeH.IngestAsync)
	authed.GET("/knowledge/collections", knowledgeH.ListCollections)
	authed.DELETE("/knowledge/collections/:name", knowledgeH.DeleteCollection)
	authed.POST("/knowledge/retrieve", knowledgeH.Retrieve)

	authed.POST("/agents", agentH.CreateAgent)
	authed.PUT("/agents", agentH.UpdateAgent)
	authed.GET("/agents", agentH.ListAgents)
	authed.GET("/agents/:agent_id", agentH.GetAgent)
	authed.POST("/models", agentH.CreateModel)
	authed.GET("/models", agentH.ListModels)

	authed.POST("/chat", chatH.Chat)
	authed.POST("/chat/optimize-prompt", chatH.OptimizePrompt)
}

// StartIngestConsumer 启动入库任务消费端，Kafka 未配置时跳过
func StartIngestConsumer(ctx context.Context) {
	conf := config.GetConfig()
	if len(conf.KafkaConfig.Brokers) == 0 || conf.KafkaConfig.IngestTopic == "" {
		zlog.Info("Kafka 未配置，跳过入库消费端")
		return
	}

	c, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  conf.KafkaConfig.Brokers,
		GroupID:  conf.KafkaConfig.ConsumerGroupID,
		Topics:   []string{conf.KafkaConfig.IngestTopic},
		ClientID: conf.KafkaConfig.ClientID,
	})
	if err != nil {
		zlog.Error("Kafka consumer 初始化失败", zap.Error(err))
		return
	}
	consumer = c

	worker := queue.NewIngestConsumerWorker(consumer, knowledgeSvc)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			zlog.Error("入库消费端退出", zap.Error(err))
		}
	}()
	zlog.Info("入库消费端已启动", zap.String("topic", conf.KafkaConfig.IngestTopic))
}

// Shutdown 释放后台资源，顺序为消费端、会话缓存、生产端、redis
func Shutdown() {
	if consumer != nil {
		_ = consumer.Close()
	}
	if convCache != nil {
		convCache.Close()
	}
	if modelCache != nil {
		modelCache.Clear()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	_ = redis.Close()
}
