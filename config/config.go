package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	LLM       LLMConfig      `yaml:"llm"`
	Bot       BotConfig      `yaml:"bot"`
	WhatsApp  ChannelConfig  `yaml:"whatsapp"`
	Instagram ChannelConfig  `yaml:"instagram"`
	Cache     CacheConfig    `yaml:"cache"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL     string        `yaml:"api_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type BotConfig struct {
	MaxHopsPerTurn  int           `yaml:"max_hops_per_turn"`
	FallbackMessage string        `yaml:"fallback_message"`
	WaitMessage     string        `yaml:"wait_message"`
	RateLimitCalls  int           `yaml:"rate_limit_calls"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	MinConfidence   float64       `yaml:"min_confidence"`
}

type ChannelConfig struct {
	APIURL      string `yaml:"api_url"`
	Token       string `yaml:"token"`
	SenderID    string `yaml:"sender_id"` // phone number id (WhatsApp) or page id (Instagram)
	VerifyToken string `yaml:"verify_token"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/zorah.db",
		},
		LLM: LLMConfig{
			APIURL:     "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			MaxTokens:  1024,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Bot: BotConfig{
			MaxHopsPerTurn:  50,
			FallbackMessage: "Desculpe, tivemos um problema por aqui. Pode tentar novamente em instantes?",
			WaitMessage:     "Só um momento, por favor. Já te respondo. 🙏",
			RateLimitCalls:  5,
			RateLimitWindow: 30 * time.Second,
			MinConfidence:   0.6,
		},
		WhatsApp: ChannelConfig{
			APIURL: "https://graph.facebook.com/v19.0",
		},
		Instagram: ChannelConfig{
			APIURL: "https://graph.facebook.com/v19.0",
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if token := os.Getenv("WHATSAPP_TOKEN"); token != "" {
		config.WhatsApp.Token = token
	}
	if id := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); id != "" {
		config.WhatsApp.SenderID = id
	}
	if vt := os.Getenv("WHATSAPP_VERIFY_TOKEN"); vt != "" {
		config.WhatsApp.VerifyToken = vt
	}
	if token := os.Getenv("INSTAGRAM_TOKEN"); token != "" {
		config.Instagram.Token = token
	}
	if id := os.Getenv("INSTAGRAM_PAGE_ID"); id != "" {
		config.Instagram.SenderID = id
	}
	if vt := os.Getenv("INSTAGRAM_VERIFY_TOKEN"); vt != "" {
		config.Instagram.VerifyToken = vt
	}

	if hops := os.Getenv("BOT_MAX_HOPS"); hops != "" {
		if n, err := strconv.Atoi(hops); err == nil && n > 0 {
			config.Bot.MaxHopsPerTurn = n
		}
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
