package pipeline

import (
	"context"
	"sync"

	"LinkMind/internal/config"
	"LinkMind/internal/modules/agent/domain/entity"
	embedProvider "LinkMind/internal/modules/agent/infrastructure/embedding"

	"github.com/cloudwego/eino/components/embedding"
)

const testDim = 8

type fakeCollectionRepo struct {
	mu          sync.Mutex
	collections map[string]*entity.KnowledgeCollection
	saveErr     error
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{collections: map[string]*entity.KnowledgeCollection{}}
}

func (f *fakeCollectionRepo) SaveCollection(ctx context.Context, c *entity.KnowledgeCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.collections[c.Name] = c
	return nil
}

func (f *fakeCollectionRepo) GetByName(ctx context.Context, name string) (*entity.KnowledgeCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[name], nil
}

func (f *fakeCollectionRepo) GetIndexBlobs(ctx context.Context, name string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collections[name]
	if c == nil {
		return nil, nil, nil
	}
	return c.IndexData, c.StoreData, nil
}

func (f *fakeCollectionRepo) ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.KnowledgeCollection
	for _, c := range f.collections {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCollectionRepo) DeleteByName(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

type fakeModelRepo struct {
	creds map[string]string
}

func (f *fakeModelRepo) GetByName(ctx context.Context, name string) (*entity.ModelCredential, error) {
	key, ok := f.creds[name]
	if !ok {
		return nil, nil
	}
	return &entity.ModelCredential{ModelName: name, ModelKey: key}, nil
}

func (f *fakeModelRepo) CreateModel(ctx context.Context, m *entity.ModelCredential) error {
	f.creds[m.ModelName] = m.ModelKey
	return nil
}

func (f *fakeModelRepo) ListModels(ctx context.Context) ([]*entity.ModelCredential, error) {
	return nil, nil
}

type fakeAgentRepo struct {
	agents map[string]*entity.AgentConfig
}

func (f *fakeAgentRepo) CreateAgent(ctx context.Context, agent *entity.AgentConfig) error {
	f.agents[agent.AgentId] = agent
	return nil
}

func (f *fakeAgentRepo) GetByAgentID(ctx context.Context, agentID string) (*entity.AgentConfig, error) {
	return f.agents[agentID], nil
}

func (f *fakeAgentRepo) UpdateAgent(ctx context.Context, agent *entity.AgentConfig) error {
	f.agents[agent.AgentId] = agent
	return nil
}

func (f *fakeAgentRepo) ListAgents(ctx context.Context) ([]*entity.AgentConfig, error) {
	return nil, nil
}

type fakeConversationRepo struct {
	mu    sync.Mutex
	saved []*entity.ConversationRecord
}

func (f *fakeConversationRepo) SaveTurn(ctx context.Context, record *entity.ConversationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeConversationRepo) ListRecentTurns(ctx context.Context, userID, agentID string, limit int) ([]*entity.ConversationRecord, error) {
	return nil, nil
}

func (f *fakeConversationRepo) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func mockEmbedderFactory(ctx context.Context, modelName, apiKey string, conf *config.Config) (embedding.Embedder, embedProvider.EmbedderMeta, error) {
	return embedProvider.NewMockEmbedder(testDim), embedProvider.EmbedderMeta{Provider: "mock", Model: modelName, Dim: testDim}, nil
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.AIConfig.Chat.DefaultTemperature = 0.1
	c.AIConfig.Chat.DefaultMaxTokens = 1024
	c.AIConfig.Chat.TimeoutSeconds = 120
	c.AIConfig.Chat.ToolTimeoutSeconds = 5
	c.AIConfig.Embedding.Dimensions = testDim
	c.AIConfig.Embedding.TimeoutSeconds = 10
	c.AIConfig.Ingest.FetchTimeoutSeconds = 10
	return c
}
