package respond

// CollectionItem 知识库摘要（不含索引字节）
type CollectionItem struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	EmbeddingModel string `json:"embedding_model"`
	ChunkStrategy  string `json:"chunk_strategy"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	Similarity     string `json:"similarity"`
	FileList       string `json:"file_list"`
	ChunkCount     int    `json:"chunk_count"`
	Dim            int    `json:"dim"`
	UpdatedAt      string `json:"updated_at"`
}

// RetrieveHit 单条检索命中
type RetrieveHit struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// RetrieveRespond 检索响应
type RetrieveRespond struct {
	Query         string        `json:"query"`
	Hits          []RetrieveHit `json:"hits"`
	ReturnedCount int           `json:"returned_count"`
	IsEmpty       bool          `json:"is_empty"`
	DurationMs    int64         `json:"duration_ms"`
}

// AsyncIngestRespond 异步入库受理响应
type AsyncIngestRespond struct {
	Name     string `json:"name"`
	Accepted bool   `json:"accepted"`
}
