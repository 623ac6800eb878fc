package pipeline

import (
	"context"
	"fmt"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/internal/modules/agent/infrastructure/llm"
	"LinkMind/internal/modules/agent/infrastructure/memory"
	"LinkMind/internal/modules/agent/infrastructure/retrieval"
	"LinkMind/internal/modules/agent/infrastructure/tools"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
)

// ChatRequest 一次对话请求
type ChatRequest struct {
	UserID   string
	AgentID  string
	Message  string
	ImageURL string // 智能体开启图片能力时生效
	FileURL  string // 智能体开启文件能力时生效
	FileName string
}

// ChatResult 对话结果
type ChatResult struct {
	AgentID    string     `json:"agent_id"`
	Answer     string     `json:"answer"`
	Retrieved  int        `json:"retrieved"`
	QueryID    string     `json:"query_id"`
	LLMMs      int64      `json:"llm_ms"`
	DurationMs int64      `json:"duration_ms"`
	Tokens     TokenStats `json:"tokens"`
}

// TokenStats Token统计
type TokenStats struct {
	PromptTokens int `json:"prompt_tokens"`
	AnswerTokens int `json:"answer_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatPipeline 对话编排管线（基于Eino Graph）
// Prepare -> ResolveContext -> LoadMemory -> BuildPrompt -> InvokeModel -> ScheduleSave
type ChatPipeline struct {
	agents     repository.AgentRepository
	models     repository.ModelRepository
	retriever  *retrieval.Retriever
	convCache  *memory.ConversationCache
	modelCache *llm.ModelCache
	ctxTools   *tools.ContextTools
	searchTool tool.InvokableTool
	conf       *config.Config

	r compose.Runnable[*ChatRequest, *ChatResult]
}

func NewChatPipeline(
	agents repository.AgentRepository,
	models repository.ModelRepository,
	retriever *retrieval.Retriever,
	convCache *memory.ConversationCache,
	modelCache *llm.ModelCache,
	ctxTools *tools.ContextTools,
	conf *config.Config,
) (*ChatPipeline, error) {
	if agents == nil || models == nil || retriever == nil || convCache == nil || modelCache == nil {
		return nil, fmt.Errorf("required dependencies are nil")
	}

	p := &ChatPipeline{
		agents:     agents,
		models:     models,
		retriever:  retriever,
		convCache:  convCache,
		modelCache: modelCache,
		ctxTools:   ctxTools,
		conf:       conf,
	}
	if ctxTools != nil {
		p.searchTool = tools.NewSearchTool(ctxTools)
	}

	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// SetSearchTool 替换联网搜索工具，测试用
func (p *ChatPipeline) SetSearchTool(t tool.InvokableTool) {
	p.searchTool = t
}

// Execute 执行一次对话
func (p *ChatPipeline) Execute(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	return p.r.Invoke(ctx, req)
}

func (p *ChatPipeline) buildGraph(ctx context.Context) (compose.Runnable[*ChatRequest, *ChatResult], error) {
	const (
		Prepare        = "Prepare"
		ResolveContext = "ResolveContext"
		LoadMemory     = "LoadMemory"
		BuildPrompt    = "BuildPrompt"
		InvokeModel    = "InvokeModel"
		ScheduleSave   = "ScheduleSave"
	)

	g := compose.NewGraph[*ChatRequest, *ChatResult]()

	_ = g.AddLambdaNode(Prepare, compose.InvokableLambdaWithOption(p.prepareNode), compose.WithNodeName(Prepare))
	_ = g.AddLambdaNode(ResolveContext, compose.InvokableLambdaWithOption(p.resolveContextNode), compose.WithNodeName(ResolveContext))
	_ = g.AddLambdaNode(LoadMemory, compose.InvokableLambdaWithOption(p.loadMemoryNode), compose.WithNodeName(LoadMemory))
	_ = g.AddLambdaNode(BuildPrompt, compose.InvokableLambdaWithOption(p.buildPromptNode), compose.WithNodeName(BuildPrompt))
	_ = g.AddLambdaNode(InvokeModel, compose.InvokableLambdaWithOption(p.invokeModelNode), compose.WithNodeName(InvokeModel))
	_ = g.AddLambdaNode(ScheduleSave, compose.InvokableLambdaWithOption(p.scheduleSaveNode), compose.WithNodeName(ScheduleSave))

	_ = g.AddEdge(compose.START, Prepare)
	_ = g.AddEdge(Prepare, ResolveContext)
	_ = g.AddEdge(ResolveContext, LoadMemory)
	_ = g.AddEdge(LoadMemory, BuildPrompt)
	_ = g.AddEdge(BuildPrompt, InvokeModel)
	_ = g.AddEdge(InvokeModel, ScheduleSave)
	_ = g.AddEdge(ScheduleSave, compose.END)

	return g.Compile(ctx, compose.WithGraphName("AgentChatPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}
