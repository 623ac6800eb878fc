package retrieval

import (
	"context"
	"sync"

	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/internal/modules/agent/infrastructure/vectorindex"
	"LinkMind/pkg/zlog"

	"go.uber.org/zap"
)

// IndexCache 反序列化后的向量索引缓存，按集合名缓存
// 解码失败视为索引缺失（跳过该集合），不会让单个坏索引拖垮整次检索
type IndexCache struct {
	mu    sync.RWMutex
	cache map[string]*vectorindex.FlatIndex
	repo  repository.CollectionRepository
}

func NewIndexCache(repo repository.CollectionRepository) *IndexCache {
	return &IndexCache{
		cache: make(map[string]*vectorindex.FlatIndex),
		repo:  repo,
	}
}

// Get 返回集合的向量索引，未命中时从数据库加载并反序列化
// 集合不存在或索引损坏时返回 (nil, nil)
func (c *IndexCache) Get(ctx context.Context, name string) (*vectorindex.FlatIndex, error) {
	c.mu.RLock()
	if idx, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	indexData, storeData, err := c.repo.GetIndexBlobs(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(indexData) == 0 || len(storeData) == 0 {
		return nil, nil
	}

	idx, err := vectorindex.Decode(indexData, storeData)
	if err != nil {
		zlog.Warn("索引反序列化失败，跳过该集合",
			zap.String("collection", name),
			zap.Error(err))
		return nil, nil
	}

	c.mu.Lock()
	c.cache[name] = idx
	c.mu.Unlock()

	zlog.Info("索引已加载进缓存",
		zap.String("collection", name),
		zap.Int("chunks", idx.Len()),
		zap.Int("dim", idx.Dim()))
	return idx, nil
}

// Put 直接写入缓存，入库流程重建索引后调用，避免下次检索再反序列化一遍
func (c *IndexCache) Put(name string, idx *vectorindex.FlatIndex) {
	c.mu.Lock()
	c.cache[name] = idx
	c.mu.Unlock()
}

// Evict 使某集合的缓存失效，重建或删除集合后调用
func (c *IndexCache) Evict(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
}

func (c *IndexCache) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]*vectorindex.FlatIndex)
	c.mu.Unlock()
}

func (c *IndexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
