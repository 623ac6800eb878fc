package request

// IngestFileItem 待入库文件
type IngestFileItem struct {
	Name string `json:"name" binding:"required"` // 文件名（带扩展名，决定解析方式）
	URL  string `json:"url" binding:"required"`  // 文件下载地址
}

// CreateCollectionRequest 创建/重建知识库请求，同名知识库整体替换
type CreateCollectionRequest struct {
	Name           string           `json:"name" binding:"required"`            // 知识库名称（唯一）
	Description    string           `json:"description"`                        // 描述
	EmbeddingModel string           `json:"embedding_model" binding:"required"` // 向量模型名
	ChunkStrategy  string           `json:"chunk_strategy"`                     // default / custom
	ChunkSize      int              `json:"chunk_size"`                         // 片段长度
	ChunkOverlap   int              `json:"chunk_overlap"`                      // 片段重叠
	BoundaryMarker string           `json:"boundary_marker"`                    // custom 策略的硬边界标记
	Similarity     string           `json:"similarity"`                         // cosine / l2 / ip
	Files          []IngestFileItem `json:"files" binding:"required"`           // 文件列表
	SkipBroken     bool             `json:"skip_broken"`                        // 单文件失败时跳过而非中止
	HeaderFlatten  bool             `json:"header_flatten"`                     // csv/xlsx 按表头逐行平铺
	Async          bool             `json:"async"`                              // 投递到消息队列异步执行
}

// RetrieveRequest 跨知识库检索请求
type RetrieveRequest struct {
	Collections []string `json:"collections" binding:"required"` // 知识库名称列表
	Query       string   `json:"query" binding:"required"`       // 查询文本
	TopK        int      `json:"top_k"`                          // 默认 3
}
