package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"LinkMind/internal/modules/agent/domain/entity"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"
	"LinkMind/internal/modules/agent/infrastructure/llm"
	"LinkMind/internal/modules/agent/infrastructure/memory"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"
	"LinkMind/internal/modules/agent/infrastructure/vectorindex"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChatModel 记录收到的消息并返回固定回复
type scriptedChatModel struct {
	answer   string
	err      error
	received [][]*schema.Message
}

func (s *scriptedChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.received = append(s.received, in)
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.answer, nil), nil
}

func (s *scriptedChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not implemented")
}

type chatFixture struct {
	pipe      *ChatPipeline
	chatModel *scriptedChatModel
	convRepo  *fakeConversationRepo
	convCache *memory.ConversationCache
	agents    *fakeAgentRepo
	colRepo   *fakeCollectionRepo
}

func newChatFixture(t *testing.T, agent *entity.AgentConfig) *chatFixture {
	t.Helper()
	conf := testConfig()

	colRepo := newFakeCollectionRepo()
	models := &fakeModelRepo{creds: map[string]string{"qwen-max": "key1", "mock-embed": "k"}}
	agents := &fakeAgentRepo{agents: map[string]*entity.AgentConfig{}}
	if agent != nil {
		agents.agents[agent.AgentId] = agent
	}

	retriever := retrieval.NewRetriever(colRepo, models, retrieval.NewIndexCache(colRepo), conf)
	retriever.SetEmbedderFactory(mockEmbedderFactory)

	convRepo := &fakeConversationRepo{}
	convCache := memory.NewConversationCache(convRepo, 16)
	t.Cleanup(convCache.Close)

	cm := &scriptedChatModel{answer: "这是回复"}
	modelCache := llm.NewModelCacheWithBuilder(conf, func(ctx context.Context, modelName, apiKey string, temperature float32, maxTokens int) (model.BaseChatModel, error) {
		return cm, nil
	})

	pipe, err := NewChatPipeline(agents, models, retriever, convCache, modelCache, nil, conf)
	require.NoError(t, err)

	return &chatFixture{pipe: pipe, chatModel: cm, convRepo: convRepo, convCache: convCache, agents: agents, colRepo: colRepo}
}

func testAgent() *entity.AgentConfig {
	return &entity.AgentConfig{
		AgentId:          "agent-1",
		AgentName:        "测试助手",
		LlmApi:           "qwen-max",
		LlmPrompt:        "你是一个贴心的助手",
		LlmMemory:        "n",
		LlmContextRounds: "5",
	}
}

func TestChatHappyPath(t *testing.T) {
	fx := newChatFixture(t, testAgent())

	res, err := fx.pipe.Execute(context.Background(), &ChatRequest{
		UserID: "u1", AgentID: "agent-1", Message: "你好",
	})
	require.NoError(t, err)
	assert.Equal(t, "这是回复", res.Answer)
	assert.Equal(t, "agent-1", res.AgentID)
	assert.NotEmpty(t, res.QueryID)

	require.Len(t, fx.chatModel.received, 1)
	msgs := fx.chatModel.received[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "贴心的助手")
	assert.Equal(t, "你好", msgs[1].Content)
}

func TestChatHistoryInPrompt(t *testing.T) {
	fx := newChatFixture(t, testAgent())
	ctx := context.Background()

	_, err := fx.pipe.Execute(ctx, &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "第一问"})
	require.NoError(t, err)
	_, err = fx.pipe.Execute(ctx, &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "第二问"})
	require.NoError(t, err)

	// 第二次调用应携带第一轮历史：system + user + assistant + user
	msgs := fx.chatModel.received[1]
	require.Len(t, msgs, 4)
	assert.Equal(t, "第一问", msgs[1].Content)
	assert.Equal(t, "这是回复", msgs[2].Content)
	assert.Equal(t, "第二问", msgs[3].Content)
}

func TestChatKnowledgeSentinelWithoutCollections(t *testing.T) {
	agent := testAgent()
	agent.LlmKnowledge = ""
	fx := newChatFixture(t, agent)

	res, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "问题"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Retrieved)

	sys := fx.chatModel.received[0][0].Content
	assert.Contains(t, sys, "未检索到相关知识")
}

func TestChatKnowledgeSentinelWhenEmpty(t *testing.T) {
	agent := testAgent()
	agent.LlmKnowledge = "不存在的库"
	fx := newChatFixture(t, agent)

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "问题"})
	require.NoError(t, err)

	sys := fx.chatModel.received[0][0].Content
	assert.Contains(t, sys, "未检索到相关知识")
}

func TestChatKnowledgeContextInjected(t *testing.T) {
	agent := testAgent()
	agent.LlmKnowledge = "kb1"
	fx := newChatFixture(t, agent)

	// 构建一个可命中的集合
	idx, err := vectorindex.NewFlatIndex(vectorindex.MetricCosine, testDim)
	require.NoError(t, err)
	em := embedProvider.NewMockEmbedder(testDim)
	vecs, err := em.EmbedStrings(context.Background(), []string{"公司年假制度为15天"})
	require.NoError(t, err)
	vec32 := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		vec32[i] = float32(v)
	}
	require.NoError(t, idx.Add(vec32, vectorindex.Chunk{Content: "公司年假制度为15天", Source: "hr.txt"}))
	indexData, storeData, err := idx.Encode()
	require.NoError(t, err)
	fx.colRepo.collections["kb1"] = &entity.KnowledgeCollection{
		Name: "kb1", EmbeddingModel: "mock-embed",
		IndexData: indexData, StoreData: storeData,
	}

	res, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "年假有几天"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retrieved)

	sys := fx.chatModel.received[0][0].Content
	assert.Contains(t, sys, "公司年假制度为15天")
	assert.NotContains(t, sys, "未检索到相关知识")
}

// scriptedSearchTool 记录收到的参数并返回固定摘要
type scriptedSearchTool struct {
	args []string
}

func (s *scriptedSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "internet_search"}, nil
}

func (s *scriptedSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	s.args = append(s.args, argumentsInJSON)
	return "1. 今日头条新闻", nil
}

func TestChatInternetSearchInPrompt(t *testing.T) {
	agent := testAgent()
	agent.LlmInternet = "y"
	fx := newChatFixture(t, agent)

	st := &scriptedSearchTool{}
	fx.pipe.SetSearchTool(st)

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "今天有什么新闻"})
	require.NoError(t, err)

	require.Len(t, st.args, 1)
	assert.Contains(t, st.args[0], "今天有什么新闻")

	sys := fx.chatModel.received[0][0].Content
	assert.Contains(t, sys, "联网搜索结果：")
	assert.Contains(t, sys, "今日头条新闻")
}

func TestChatValidation(t *testing.T) {
	fx := newChatFixture(t, testAgent())
	ctx := context.Background()

	_, err := fx.pipe.Execute(ctx, &ChatRequest{AgentID: "agent-1", Message: "hi"})
	require.Error(t, err)

	_, err = fx.pipe.Execute(ctx, &ChatRequest{UserID: "u1", Message: "hi"})
	require.Error(t, err)

	_, err = fx.pipe.Execute(ctx, &ChatRequest{UserID: "u1", AgentID: "agent-1"})
	require.Error(t, err)
}

func TestChatUnknownAgent(t *testing.T) {
	fx := newChatFixture(t, nil)
	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "ghost", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestChatMalformedTemperature(t *testing.T) {
	agent := testAgent()
	agent.LlmTemperature = "abc"
	fx := newChatFixture(t, agent)

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "温度")
}

func TestChatModelErrorFatal(t *testing.T) {
	fx := newChatFixture(t, testAgent())
	fx.chatModel.err = fmt.Errorf("upstream 500")

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "模型调用失败")

	// 失败的轮次不进入记忆
	assert.Empty(t, fx.convCache.History(context.Background(), "u1", "agent-1", 5, false))
}

func TestChatMemoryPersist(t *testing.T) {
	agent := testAgent()
	agent.LlmMemory = "y"
	fx := newChatFixture(t, agent)

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "记住这句"})
	require.NoError(t, err)

	fx.convCache.Close()
	assert.Equal(t, 1, fx.convRepo.savedCount())
}

func TestChatPromptBraceUnescape(t *testing.T) {
	agent := testAgent()
	agent.LlmPrompt = "输出格式为 {{\"answer\": 文本}}"
	fx := newChatFixture(t, agent)

	_, err := fx.pipe.Execute(context.Background(), &ChatRequest{UserID: "u1", AgentID: "agent-1", Message: "hi"})
	require.NoError(t, err)

	sys := fx.chatModel.received[0][0].Content
	assert.True(t, strings.Contains(sys, `{"answer": 文本}`))
}

func TestParseKnowledgeList(t *testing.T) {
	assert.Nil(t, parseKnowledgeList(""))
	assert.Equal(t, []string{"a", "b"}, parseKnowledgeList("a, b"))
	assert.Equal(t, []string{"a", "b"}, parseKnowledgeList(`["a","b"]`))
	assert.Equal(t, []string{"x"}, parseKnowledgeList("x,"))
}
