package entity

import (
	"time"
)

// KnowledgeCollection 知识库集合，每个名称只对应一份序列化索引（blob 对）
// IndexData 存放索引结构字节，StoreData 存放 chunk 存储字节，二者必须同生共死
type KnowledgeCollection struct {
	Id             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name           string    `gorm:"column:name;type:varchar(64);not null;uniqueIndex:uniq_collection_name"`
	Description    string    `gorm:"column:description;type:varchar(255)"`
	EmbeddingModel string    `gorm:"column:embedding_model;type:varchar(64);not null"`
	ChunkStrategy  string    `gorm:"column:chunk_strategy;type:varchar(20);not null"`
	ChunkSize      int       `gorm:"column:chunk_size;type:int;not null"`
	ChunkOverlap   int       `gorm:"column:chunk_overlap;type:int;not null"`
	BoundaryMarker string    `gorm:"column:boundary_marker;type:varchar(30)"`
	Similarity     string    `gorm:"column:similarity;type:varchar(20)"`
	Reorder        string    `gorm:"column:reorder;type:varchar(20)"`
	SortConfigJson string    `gorm:"column:sort_config_json;type:json"`
	FileListJson   string    `gorm:"column:file_list_json;type:json"`
	ChunkCount     int       `gorm:"column:chunk_count;type:int;not null;default:0"`
	Dim            int       `gorm:"column:dim;type:int;not null;default:0"`
	IndexData      []byte    `gorm:"column:index_data;type:longblob"`
	StoreData      []byte    `gorm:"column:store_data;type:longblob"`
	CreatedAt      time.Time `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (KnowledgeCollection) TableName() string { return "knowledge_collection" }

// AgentConfig 智能体配置。数值型字段沿用字符串存储，由编排层显式解析
type AgentConfig struct {
	Id               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AgentId          string    `gorm:"column:agent_id;type:char(36);not null;uniqueIndex:uniq_agent_id"`
	AgentName        string    `gorm:"column:agent_name;type:varchar(64);not null"`
	AgentState       string    `gorm:"column:agent_state;type:varchar(20)"`
	LlmApi           string    `gorm:"column:llm_api;type:varchar(64);not null"`
	LlmPrompt        string    `gorm:"column:llm_prompt;type:text"`
	LlmImage         string    `gorm:"column:llm_image;type:char(1);default:'n'"`
	LlmKnowledge     string    `gorm:"column:llm_knowledge;type:varchar(512)"`
	LlmFile          string    `gorm:"column:llm_file;type:char(1);default:'n'"`
	LlmInternet      string    `gorm:"column:llm_internet;type:char(1);default:'n'"`
	LlmMemory        string    `gorm:"column:llm_memory;type:char(1);default:'n'"`
	LlmMaxReplyLen   string    `gorm:"column:llm_max_reply_len;type:varchar(16)"`
	LlmContextRounds string    `gorm:"column:llm_context_rounds;type:varchar(16)"`
	LlmTemperature   string    `gorm:"column:llm_temperature;type:varchar(16)"`
	CreatedAt        time.Time `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (AgentConfig) TableName() string { return "agent_config" }

// ModelCredential 模型名称到凭证的映射表
type ModelCredential struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ModelName string    `gorm:"column:model_name;type:varchar(64);not null;uniqueIndex:uniq_model_name"`
	ModelKey  string    `gorm:"column:model_key;type:varchar(128);not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (ModelCredential) TableName() string { return "model_credential" }

// ConversationRecord 对话历史持久化记录（仅追加）
type ConversationRecord struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserId    string    `gorm:"column:user_id;type:char(36);not null;index:idx_conversation_key"`
	AgentId   string    `gorm:"column:agent_id;type:char(36);not null;index:idx_conversation_key"`
	Message   string    `gorm:"column:message;type:mediumtext"`
	Response  string    `gorm:"column:response;type:mediumtext"`
	Timestamp time.Time `gorm:"column:timestamp;type:datetime;not null;index:idx_conversation_time"`
}

func (ConversationRecord) TableName() string { return "conversation_record" }
