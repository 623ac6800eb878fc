package memory

import (
	"context"
	"sync"
	"time"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"
	"LinkMind/pkg/zlog"

	"go.uber.org/zap"
)

// Turn 一轮对话：一条用户消息和对应回复
type Turn struct {
	Message   string
	Response  string
	Timestamp time.Time
}

type saveTask struct {
	record *entity.ConversationRecord
}

// ConversationCache 对话上下文缓存
// 以 userID_agentID 为键维护有界滑动窗口，落库走后台单写协程，天然保证同键保存串行
type ConversationCache struct {
	mu      sync.RWMutex
	windows map[string][]Turn

	repo   repository.ConversationRepository
	saveCh chan saveTask
	wg     sync.WaitGroup

	// closeMu 保护 stopped，保证 Close 之后不再有任务进入 saveCh
	closeMu   sync.RWMutex
	stopped   bool
	closeOnce sync.Once
	closed    chan struct{}
}

func NewConversationCache(repo repository.ConversationRepository, bufSize int) *ConversationCache {
	if bufSize <= 0 {
		bufSize = 256
	}
	c := &ConversationCache{
		windows: make(map[string][]Turn),
		repo:    repo,
		saveCh:  make(chan saveTask, bufSize),
		closed:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.runSaver()
	return c
}

func conversationKey(userID, agentID string) string {
	return userID + "_" + agentID
}

// History 返回某会话最近 maxRounds 轮对话，按时间从旧到新
// 缓存未命中且 loadFromDB 为真时回源数据库并填充缓存
func (c *ConversationCache) History(ctx context.Context, userID, agentID string, maxRounds int, loadFromDB bool) []Turn {
	if maxRounds <= 0 {
		return nil
	}
	key := conversationKey(userID, agentID)

	c.mu.RLock()
	window, ok := c.windows[key]
	c.mu.RUnlock()

	if !ok && loadFromDB && c.repo != nil {
		records, err := c.repo.ListRecentTurns(ctx, userID, agentID, maxRounds)
		if err != nil {
			zlog.Warn("加载历史对话失败",
				zap.String("userId", userID),
				zap.String("agentId", agentID),
				zap.Error(err))
			return nil
		}
		// 库里按时间倒序，窗口内按时间正序
		window = make([]Turn, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			window = append(window, Turn{
				Message:   records[i].Message,
				Response:  records[i].Response,
				Timestamp: records[i].Timestamp,
			})
		}
		c.mu.Lock()
		if _, exists := c.windows[key]; !exists {
			c.windows[key] = window
		} else {
			window = c.windows[key]
		}
		c.mu.Unlock()
	}

	if len(window) > maxRounds {
		window = window[len(window)-maxRounds:]
	}
	out := make([]Turn, len(window))
	copy(out, window)
	return out
}

// AppendTurn 追加一轮对话到窗口并裁剪到 maxRounds，persist 为真时异步落库
func (c *ConversationCache) AppendTurn(ctx context.Context, userID, agentID, message, response string, maxRounds int, persist bool) {
	now := time.Now()
	key := conversationKey(userID, agentID)

	c.mu.Lock()
	window := append(c.windows[key], Turn{Message: message, Response: response, Timestamp: now})
	if maxRounds > 0 && len(window) > maxRounds {
		window = window[len(window)-maxRounds:]
	}
	c.windows[key] = window
	c.mu.Unlock()

	if !persist || c.repo == nil {
		return
	}

	task := saveTask{record: &entity.ConversationRecord{
		UserId:    userID,
		AgentId:   agentID,
		Message:   message,
		Response:  response,
		Timestamp: now,
	}}

	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.stopped {
		c.doSave(task)
		return
	}
	select {
	case c.saveCh <- task:
	default:
		// 队列打满时退化为同步保存，不丢历史
		zlog.Warn("对话保存队列已满，转为同步写入",
			zap.String("userId", userID),
			zap.String("agentId", agentID))
		c.doSave(task)
	}
}

// Evict 清除某会话的缓存窗口
func (c *ConversationCache) Evict(userID, agentID string) {
	c.mu.Lock()
	delete(c.windows, conversationKey(userID, agentID))
	c.mu.Unlock()
}

// Close 停止后台写协程并等待队列排空
// saveCh 始终不关闭，关闭后到达的任务转为同步写入
func (c *ConversationCache) Close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.stopped = true
		c.closeMu.Unlock()
		close(c.closed)
	})
	c.wg.Wait()
}

// runSaver 单写协程，panic 后自动重启，收到关闭信号后排空队列再退出
func (c *ConversationCache) runSaver() {
	defer c.wg.Done()
	for {
		exited := func() (done bool) {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error("对话保存协程异常，重启", zap.Any("panic", r))
				}
			}()
			for {
				select {
				case task := <-c.saveCh:
					c.doSave(task)
				case <-c.closed:
					for {
						select {
						case task := <-c.saveCh:
							c.doSave(task)
						default:
							return true
						}
					}
				}
			}
		}()
		if exited {
			return
		}
	}
}

func (c *ConversationCache) doSave(task saveTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.SaveTurn(ctx, task.record); err != nil {
		zlog.Error("保存对话记录失败",
			zap.String("userId", task.record.UserId),
			zap.String("agentId", task.record.AgentId),
			zap.Error(err))
	}
}
