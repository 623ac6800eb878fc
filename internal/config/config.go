package config

import (
	"log"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	IngestTopic     string   `toml:"ingestTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

// AIEmbeddingConfig 向量化相关配置（维度与各 provider 的超时）
type AIEmbeddingConfig struct {
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	OpenAIBaseURL  string `toml:"openaiBaseURL"`
	ArkBaseURL     string `toml:"arkBaseURL"`
}

// AIChatConfig 对话模型默认参数（请求未携带时的兜底值）
type AIChatConfig struct {
	DefaultTemperature float32 `toml:"defaultTemperature"`
	DefaultMaxTokens   int     `toml:"defaultMaxTokens"`
	TimeoutSeconds     int     `toml:"timeoutSeconds"`
	ToolTimeoutSeconds int     `toml:"toolTimeoutSeconds"`
}

// AIIngestConfig 知识入库配置
type AIIngestConfig struct {
	FetchTimeoutSeconds int    `toml:"fetchTimeoutSeconds"`
	LockTimeoutSeconds  int    `toml:"lockTimeoutSeconds"`
	TempDir             string `toml:"tempDir"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	Chat      AIChatConfig      `toml:"chat"`
	Ingest    AIIngestConfig    `toml:"ingest"`
}

type Config struct {
	MainConfig  `toml:"mainConfig"`
	MysqlConfig `toml:"mysqlConfig"`
	JwtConfig   `toml:"jwtConfig"`
	KafkaConfig `toml:"kafkaConfig"`
	AIConfig    `toml:"aiConfig"`
	LogConfig   `toml:"logConfig"`
	RedisConfig `toml:"redisConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := "configs/config_local.toml"
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
		applyDefaults(config)
	}
	return config
}

func applyDefaults(c *Config) {
	if c.AIConfig.Chat.DefaultTemperature <= 0 {
		c.AIConfig.Chat.DefaultTemperature = 0.1
	}
	if c.AIConfig.Chat.DefaultMaxTokens <= 0 {
		c.AIConfig.Chat.DefaultMaxTokens = 1024
	}
	if c.AIConfig.Chat.TimeoutSeconds <= 0 {
		c.AIConfig.Chat.TimeoutSeconds = 120
	}
	if c.AIConfig.Chat.ToolTimeoutSeconds <= 0 {
		c.AIConfig.Chat.ToolTimeoutSeconds = 15
	}
	if c.AIConfig.Embedding.Dimensions <= 0 {
		c.AIConfig.Embedding.Dimensions = 1536
	}
	if c.AIConfig.Embedding.TimeoutSeconds <= 0 {
		c.AIConfig.Embedding.TimeoutSeconds = 30
	}
	if c.AIConfig.Ingest.FetchTimeoutSeconds <= 0 {
		c.AIConfig.Ingest.FetchTimeoutSeconds = 30
	}
	if c.AIConfig.Ingest.LockTimeoutSeconds <= 0 {
		c.AIConfig.Ingest.LockTimeoutSeconds = 600
	}
}
