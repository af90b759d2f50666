package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Store     StoreConfig
	LLM       LLMConfig
	Prices    PricesConfig
	Chat      ChatConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig points at the Typesense search engine that holds
// conversations, messages, users and sessions.
type StoreConfig struct {
	Host     string
	Port     int
	Protocol string
	APIKey   string
	Timeout  time.Duration
}

func (c StoreConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}

// LLMConfig configures the Groq-compatible generative backend. The token
// window fields override the built-in model profile when non-zero.
type LLMConfig struct {
	BaseURL          string
	APIKey           string
	Model            string
	Temperature      float64
	MaxContextTokens int
	MaxOutputTokens  int
	CharsPerToken    int
}

type PricesConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

type ChatConfig struct {
	SystemPrompt        string
	MaxContextMessages  int
	ResponseCacheTTL    time.Duration
	ConversationTimeout time.Duration
	KeepConversations   int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type RateLimitConfig struct {
	Requests     int
	AuthRequests int
	WindowSec    int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Store: StoreConfig{
			Host:     k.String("store.host"),
			Port:     k.Int("store.port"),
			Protocol: k.String("store.protocol"),
			APIKey:   k.String("store.api.key"),
		},
		LLM: LLMConfig{
			BaseURL:          k.String("llm.base.url"),
			APIKey:           k.String("llm.api.key"),
			Model:            k.String("llm.model"),
			Temperature:      k.Float64("llm.temperature"),
			MaxContextTokens: k.Int("llm.max.context.tokens"),
			MaxOutputTokens:  k.Int("llm.max.output.tokens"),
			CharsPerToken:    k.Int("llm.chars.per.token"),
		},
		Prices: PricesConfig{
			BaseURL: k.String("prices.base.url"),
			APIKey:  k.String("prices.api.key"),
		},
		Chat: ChatConfig{
			SystemPrompt:       k.String("chat.system.prompt"),
			MaxContextMessages: k.Int("chat.max.context.messages"),
			KeepConversations:  k.Int("chat.keep.conversations"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		RateLimit: RateLimitConfig{
			Requests:     k.Int("rate.limit.requests"),
			AuthRequests: k.Int("rate.limit.auth.requests"),
			WindowSec:    k.Int("rate.limit.window"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	applyDefaults(cfg)

	if err := parseDurations(k, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Store.Host == "" {
		cfg.Store.Host = "localhost"
	}
	if cfg.Store.Port == 0 {
		cfg.Store.Port = 8108
	}
	if cfg.Store.Protocol == "" {
		cfg.Store.Protocol = "http"
	}
	if cfg.Store.Timeout == 0 {
		cfg.Store.Timeout = 10 * time.Second
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "meta-llama/llama-4-maverick-17b-128e-instruct"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.Prices.BaseURL == "" {
		cfg.Prices.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Chat.MaxContextMessages == 0 {
		cfg.Chat.MaxContextMessages = 50
	}
	if cfg.Chat.KeepConversations == 0 {
		cfg.Chat.KeepConversations = 10
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 60
	}
	if cfg.RateLimit.AuthRequests == 0 {
		cfg.RateLimit.AuthRequests = 10
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func parseDurations(k *koanf.Koanf, cfg *Config) error {
	var err error

	cfg.Prices.CacheTTL, err = parseDuration(k, "prices.cache.ttl", "30s")
	if err != nil {
		return err
	}
	cfg.Chat.ResponseCacheTTL, err = parseDuration(k, "chat.response.cache.ttl", "5m")
	if err != nil {
		return err
	}
	cfg.Chat.ConversationTimeout, err = parseDuration(k, "chat.conversation.timeout", "1h")
	if err != nil {
		return err
	}
	cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "15m")
	if err != nil {
		return err
	}
	cfg.JWT.RefreshExpiry, err = parseDuration(k, "jwt.refresh.expiry", "168h")
	if err != nil {
		return err
	}
	return nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
