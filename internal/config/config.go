package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	chatservice "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Agent   AgentConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Session: session, Agent: agent, Log: log}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// RequestTimeout 限制单个请求的总耗时，包括等待同一会话上正在进行的对话。
	RequestTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	requestTimeout, err := parseDurationEnv("REQUEST_TIMEOUT", 150*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, RequestTimeout: requestTimeout}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, RequestTimeout: requestTimeout}, nil
}

// Truncation modes.
const (
	TruncateByCount  = "count"
	TruncateByTokens = "tokens"
)

// SessionConfig 描述会话历史的截断策略。
type SessionConfig struct {
	Truncation string
	MaxTurns   int
	MaxTokens  int
}

func loadSessionConfig() (SessionConfig, error) {
	mode := strings.ToLower(getEnvOrDefault("SESSION_TRUNCATION", TruncateByCount))
	if mode != TruncateByCount && mode != TruncateByTokens {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_TRUNCATION value %q: want %q or %q", mode, TruncateByCount, TruncateByTokens)
	}

	maxTurns := 20
	if override, err := parseOptionalIntEnv("SESSION_MAX_TURNS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		// 一次对话会原子写入用户与助手两条消息，窗口至少要容纳一轮。
		if *override < 2 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_MAX_TURNS value %d: must be at least 2", *override)
		}
		maxTurns = *override
	}

	maxTokens := 4000
	if override, err := parseOptionalIntEnv("SESSION_MAX_TOKENS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_MAX_TOKENS value %d: must be positive", *override)
		}
		maxTokens = *override
	}

	return SessionConfig{Truncation: mode, MaxTurns: maxTurns, MaxTokens: maxTokens}, nil
}

// Agent providers.
const (
	ProviderArk       = "ark"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// AgentConfig 描述大模型相关配置。
type AgentConfig struct {
	// Provider 为空表示未配置任何模型，聊天接口返回 503。
	Provider     string
	SystemPrompt string
	Timeout      time.Duration
	Temperature  *float64
	MaxTokens    *int

	Ark       ArkConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// ArkConfig 描述火山方舟模型凭证。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// OpenAIConfig 描述 OpenAI 兼容接口（包括 Gemini 的兼容端点）。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AnthropicConfig 描述 Anthropic Messages 接口。
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// Enabled 表示是否提供了必需的密钥。
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// Enabled 表示是否提供了必需的密钥。
func (c AnthropicConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// Enabled 表示是否选定了可用的模型提供方。
func (c AgentConfig) Enabled() bool {
	return c.Provider != ""
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AgentConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Ark.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAgentConfig() (AgentConfig, error) {
	temperature, err := parseOptionalFloatEnv("AGENT_TEMPERATURE")
	if err != nil {
		return AgentConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AGENT_MAX_TOKENS")
	if err != nil {
		return AgentConfig{}, err
	}

	timeout, err := parseDurationEnv("AGENT_TIMEOUT", 60*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}

	systemPrompt, hasSystemPrompt := os.LookupEnv("AGENT_SYSTEM_PROMPT")
	if !hasSystemPrompt {
		systemPrompt = chatservice.DefaultSystemPrompt
	}

	cfg := AgentConfig{
		SystemPrompt: strings.TrimSpace(systemPrompt),
		Timeout:      timeout,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     firstEnv("ARK_MODEL", "Model"),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
		OpenAI: loadOpenAIConfig(),
		Anthropic: AnthropicConfig{
			APIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
			Model:   getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		},
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AGENT_PROVIDER")))
	switch provider {
	case "":
		cfg.Provider = detectProvider(cfg)
	case ProviderArk, ProviderOpenAI, ProviderAnthropic:
		cfg.Provider = provider
	default:
		return AgentConfig{}, fmt.Errorf("invalid AGENT_PROVIDER value %q", provider)
	}

	return cfg, nil
}

// loadOpenAIConfig 读取 OpenAI 兼容配置；未设置 OPENAI_* 时回退到 GEMINI_*。
func loadOpenAIConfig() OpenAIConfig {
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return OpenAIConfig{
			APIKey:  key,
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		}
	}

	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		return OpenAIConfig{
			APIKey:  key,
			BaseURL: getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gemini-pro"),
		}
	}

	return OpenAIConfig{
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

func detectProvider(cfg AgentConfig) string {
	switch {
	case cfg.Ark.Enabled():
		return ProviderArk
	case cfg.OpenAI.Enabled():
		return ProviderOpenAI
	case cfg.Anthropic.Enabled():
		return ProviderAnthropic
	default:
		return ""
	}
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}

	return LogConfig{Level: level, Format: format}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// parseDurationEnv 接受 Go duration（"45s"）或整数秒（"45"）。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
