package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/infrastructure/memory"
	"LinkMind/pkg/util"
	"LinkMind/pkg/xerr"
	"LinkMind/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// noKnowledgeSentinel 检索为空时注入的占位文本，避免模型把空上下文当成全知依据
const noKnowledgeSentinel = "未检索到相关知识"

const defaultTopK = 3

// chatState Graph内部状态（在节点间传递）
type chatState struct {
	Req   *ChatRequest
	Agent *entity.AgentConfig

	Temperature float32
	MaxTokens   int
	MaxRounds   int
	Knowledge   []string

	ChatModel model.BaseChatModel

	KnowledgeCtx string
	Retrieved    int
	ToolCtx      []string

	History    []memory.Turn
	PromptMsgs []*schema.Message

	Answer  string
	Tokens  TokenStats
	QueryID string

	Start time.Time
	LLMMs int64
	Err   error
}

// Node 1: Prepare - 加载智能体配置，解析数值参数，准备模型实例
func (p *ChatPipeline) prepareNode(ctx context.Context, req *ChatRequest, _ ...any) (*chatState, error) {
	st := &chatState{
		Req:     req,
		Start:   time.Now(),
		QueryID: "q_" + util.GenerateShortUUID(),
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.AgentID = strings.TrimSpace(req.AgentID)
	if req.UserID == "" {
		st.Err = xerr.ValidationError("用户ID不能为空")
		return st, nil
	}
	if req.AgentID == "" {
		st.Err = xerr.ValidationError("智能体ID不能为空")
		return st, nil
	}
	if strings.TrimSpace(req.Message) == "" {
		st.Err = xerr.ValidationError("消息内容不能为空")
		return st, nil
	}

	agent, err := p.agents.GetByAgentID(ctx, req.AgentID)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if agent == nil {
		st.Err = xerr.NotFoundError("智能体不存在: " + req.AgentID)
		return st, nil
	}
	st.Agent = agent

	st.Temperature, err = parseTemperature(agent.LlmTemperature, p.conf.AIConfig.Chat.DefaultTemperature)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.MaxTokens, err = parsePositiveInt(agent.LlmMaxReplyLen, p.conf.AIConfig.Chat.DefaultMaxTokens, "最大回复长度")
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.MaxRounds, err = parsePositiveInt(agent.LlmContextRounds, 0, "上下文轮数")
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Knowledge = parseKnowledgeList(agent.LlmKnowledge)

	cred, err := p.models.GetByName(ctx, agent.LlmApi)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if cred == nil {
		st.Err = xerr.NotFoundError("模型凭证未配置: " + agent.LlmApi)
		return st, nil
	}

	cm, err := p.modelCache.Get(ctx, agent.LlmApi, cred.ModelKey, st.Temperature, st.MaxTokens)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.ChatModel = cm
	return st, nil
}

// Node 2: ResolveContext - 知识检索与工具并行执行，结果在本节点汇合
// 检索与工具失败都不阻断对话，只降级为无该类上下文
func (p *ChatPipeline) resolveContextNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	if len(st.Knowledge) == 0 {
		// 未绑定知识库时不触发检索，直接注入占位文本
		st.KnowledgeCtx = noKnowledgeSentinel
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := p.retriever.Retrieve(ctx, st.Knowledge, st.Req.Message, defaultTopK)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zlog.Warn("知识检索失败，降级为占位文本",
					zap.String("queryId", st.QueryID),
					zap.Error(err))
				st.KnowledgeCtx = noKnowledgeSentinel
				return
			}
			st.Retrieved = len(results)
			if len(results) == 0 {
				st.KnowledgeCtx = noKnowledgeSentinel
				return
			}
			var sb strings.Builder
			for i, r := range results {
				sb.WriteString(fmt.Sprintf("[%d] %s（来源: %s）\n", i+1, r.Chunk.Content, r.Chunk.Source))
			}
			st.KnowledgeCtx = sb.String()
		}()
	}

	if st.Agent.LlmInternet == "y" && p.searchTool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toolCtx, cancel := context.WithTimeout(ctx, time.Duration(p.conf.AIConfig.Chat.ToolTimeoutSeconds)*time.Second)
			defer cancel()
			args, _ := json.Marshal(map[string]string{"query": st.Req.Message})
			summary, err := p.searchTool.InvokableRun(toolCtx, string(args))
			if err != nil {
				zlog.Warn("联网搜索失败", zap.String("queryId", st.QueryID), zap.Error(err))
				return
			}
			if summary != "" {
				mu.Lock()
				st.ToolCtx = append(st.ToolCtx, "联网搜索结果：\n"+summary)
				mu.Unlock()
			}
		}()
	}

	if st.Agent.LlmFile == "y" && strings.TrimSpace(st.Req.FileURL) != "" && p.ctxTools != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, err := p.ctxTools.ReadRemoteFile(ctx, st.Req.FileURL, st.Req.FileName)
			if err != nil {
				zlog.Warn("附件读取失败",
					zap.String("queryId", st.QueryID),
					zap.String("file", st.Req.FileName),
					zap.Error(err))
				return
			}
			if content != "" {
				mu.Lock()
				st.ToolCtx = append(st.ToolCtx, "用户附件内容：\n"+content)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return st, nil
}

// Node 3: LoadMemory - 加载历史对话窗口
func (p *ChatPipeline) loadMemoryNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	if st.MaxRounds > 0 {
		st.History = p.convCache.History(ctx, st.Req.UserID, st.Req.AgentID, st.MaxRounds, st.Agent.LlmMemory == "y")
	}
	return st, nil
}

// Node 4: BuildPrompt - 组装消息序列
func (p *ChatPipeline) buildPromptNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	_ = ctx
	if st == nil || st.Err != nil {
		return st, nil
	}

	msgs := make([]*schema.Message, 0, 2+len(st.History)*2)

	var sys strings.Builder
	sys.WriteString(unescapeBraces(st.Agent.LlmPrompt))
	if st.KnowledgeCtx != "" {
		sys.WriteString("\n\n知识库检索结果：\n")
		sys.WriteString(st.KnowledgeCtx)
	}
	for _, tc := range st.ToolCtx {
		sys.WriteString("\n\n")
		sys.WriteString(tc)
	}
	msgs = append(msgs, schema.SystemMessage(sys.String()))

	for _, turn := range st.History {
		msgs = append(msgs, schema.UserMessage(turn.Message))
		msgs = append(msgs, schema.AssistantMessage(turn.Response, nil))
	}

	userMsg := schema.UserMessage(st.Req.Message)
	if st.Agent.LlmImage == "y" && strings.TrimSpace(st.Req.ImageURL) != "" {
		userMsg.MultiContent = []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: st.Req.Message},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: st.Req.ImageURL}},
		}
	}
	msgs = append(msgs, userMsg)

	st.PromptMsgs = msgs

	zlog.Info("对话Prompt构建完成",
		zap.String("queryId", st.QueryID),
		zap.String("agentId", st.Req.AgentID),
		zap.Int("promptMsgs", len(msgs)),
		zap.Int("historyTurns", len(st.History)),
		zap.Int("retrieved", st.Retrieved))
	return st, nil
}

// Node 5: InvokeModel - 调用对话模型，模型错误直接终止
func (p *ChatPipeline) invokeModelNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	llmStart := time.Now()
	resp, err := st.ChatModel.Generate(ctx, st.PromptMsgs)
	if err != nil {
		st.Err = xerr.ModelInvocationError(fmt.Sprintf("模型调用失败: %v", err))
		return st, nil
	}

	st.Answer = resp.Content
	st.LLMMs = time.Since(llmStart).Milliseconds()

	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		usage := resp.ResponseMeta.Usage
		st.Tokens = TokenStats{
			PromptTokens: usage.PromptTokens,
			AnswerTokens: usage.CompletionTokens,
			TotalTokens:  usage.TotalTokens,
		}
	}
	return st, nil
}

// Node 6: ScheduleSave - 更新记忆窗口并调度异步落库
func (p *ChatPipeline) scheduleSaveNode(ctx context.Context, st *chatState, _ ...any) (*ChatResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &ChatResult{QueryID: st.QueryID}
	if st.Req != nil {
		res.AgentID = st.Req.AgentID
	}
	if st.Err != nil {
		return res, st.Err
	}

	if st.MaxRounds > 0 {
		p.convCache.AppendTurn(ctx, st.Req.UserID, st.Req.AgentID, st.Req.Message, st.Answer,
			st.MaxRounds, st.Agent.LlmMemory == "y")
	}

	res.Answer = st.Answer
	res.Retrieved = st.Retrieved
	res.Tokens = st.Tokens
	res.LLMMs = st.LLMMs
	res.DurationMs = time.Since(st.Start).Milliseconds()

	zlog.Info("对话完成",
		zap.String("queryId", st.QueryID),
		zap.String("userId", st.Req.UserID),
		zap.String("agentId", st.Req.AgentID),
		zap.Int("answerLen", len(st.Answer)),
		zap.Int64("llmMs", st.LLMMs),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}

// 辅助函数

func parseTemperature(s string, def float32) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, xerr.ValidationError("非法的温度参数: " + s)
	}
	return float32(v), nil
}

func parsePositiveInt(s string, def int, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, xerr.ValidationError(fmt.Sprintf("非法的%s: %s", name, s))
	}
	return v, nil
}

// parseKnowledgeList 兼容 JSON 数组与逗号分隔两种存储格式
func parseKnowledgeList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var names []string
		if err := json.Unmarshal([]byte(s), &names); err == nil {
			return trimNonEmpty(names)
		}
	}
	return trimNonEmpty(strings.Split(s, ","))
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// unescapeBraces 模板写法中的双花括号还原为字面量
func unescapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{{", "{")
	return strings.ReplaceAll(s, "}}", "}")
}
