package respond

// AgentItem 智能体配置视图
type AgentItem struct {
	AgentID          string `json:"agent_id"`
	AgentName        string `json:"agent_name"`
	AgentState       string `json:"agent_state"`
	LlmApi           string `json:"llm_api"`
	LlmPrompt        string `json:"llm_prompt"`
	LlmImage         string `json:"llm_image"`
	LlmKnowledge     string `json:"llm_knowledge"`
	LlmFile          string `json:"llm_file"`
	LlmInternet      string `json:"llm_internet"`
	LlmMemory        string `json:"llm_memory"`
	LlmMaxReplyLen   string `json:"llm_max_reply_len"`
	LlmContextRounds string `json:"llm_context_rounds"`
	LlmTemperature   string `json:"llm_temperature"`
}

// ModelItem 模型凭证视图（不回传密钥明文）
type ModelItem struct {
	ModelName string `json:"model_name"`
}

// ChatRespond 对话响应
type ChatRespond struct {
	AgentID    string `json:"agent_id"`
	Answer     string `json:"answer"`
	Retrieved  int    `json:"retrieved"`
	QueryID    string `json:"query_id"`
	DurationMs int64  `json:"duration_ms"`
}

// OptimizePromptRespond 提示词优化响应
type OptimizePromptRespond struct {
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
}
