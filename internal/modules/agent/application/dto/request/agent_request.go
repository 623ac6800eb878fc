package request

// CreateAgentRequest 创建智能体请求
// 开关字段取值 y/n，数值字段以字符串传递、由编排层解析
type CreateAgentRequest struct {
	AgentName        string `json:"agent_name" binding:"required"` // 名称
	AgentState       string `json:"agent_state"`                   // 状态
	LlmApi           string `json:"llm_api" binding:"required"`    // 对话模型名
	LlmPrompt        string `json:"llm_prompt"`                    // 系统提示词
	LlmImage         string `json:"llm_image"`                     // 图片理解开关
	LlmKnowledge     string `json:"llm_knowledge"`                 // 绑定知识库（逗号分隔或 JSON 数组）
	LlmFile          string `json:"llm_file"`                      // 附件文件开关
	LlmInternet      string `json:"llm_internet"`                  // 联网搜索开关
	LlmMemory        string `json:"llm_memory"`                    // 历史记忆落库开关
	LlmMaxReplyLen   string `json:"llm_max_reply_len"`             // 最大回复长度
	LlmContextRounds string `json:"llm_context_rounds"`            // 上下文轮数
	LlmTemperature   string `json:"llm_temperature"`               // 温度
}

// UpdateAgentRequest 更新智能体请求
type UpdateAgentRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	CreateAgentRequest
}

// CreateModelRequest 登记模型凭证
type CreateModelRequest struct {
	ModelName string `json:"model_name" binding:"required"`
	ModelKey  string `json:"model_key" binding:"required"`
}

// ChatRequest 对话请求
type ChatRequest struct {
	AgentID  string `json:"agent_id" binding:"required"`
	Message  string `json:"message" binding:"required"`
	ImageURL string `json:"image_url"` // 智能体开启图片能力时生效
	FileURL  string `json:"file_url"`  // 智能体开启文件能力时生效
	FileName string `json:"file_name"`
}

// OptimizePromptRequest 提示词优化请求
type OptimizePromptRequest struct {
	ModelName string `json:"model_name" binding:"required"` // 用于优化的对话模型
	Prompt    string `json:"prompt" binding:"required"`     // 原始提示词
}
