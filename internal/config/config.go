package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个应用的配置项。
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	AI      AIConfig      `toml:"ai"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig 描述本地 HTTP 服务配置。
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig 描述 JSON 数据文件与头像目录。
type StorageConfig struct {
	DataDir   string `toml:"data_dir"`
	ImagesDir string `toml:"images_dir"`
}

// AIConfig 描述本地大模型服务配置。BaseURL 指向兼容 OpenAI 的本地推理服务。
type AIConfig struct {
	BaseURL      string   `toml:"base_url"`
	APIKey       string   `toml:"api_key"`
	Model        string   `toml:"model"`
	Temperature  *float64 `toml:"temperature"`
	TopP         *float64 `toml:"top_p"`
	MaxTokens    *int     `toml:"max_tokens"`
	HistoryLimit int      `toml:"history_limit"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	File    string `toml:"file"`
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

// Load 先读取可选的 TOML 文件，再用环境变量覆盖。
func Load() (*Config, error) {
	cfg := defaultConfig()

	path := getEnvOrDefault("TAVERN_CONFIG", "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}

	if err := applyServerEnv(&cfg.Server); err != nil {
		return nil, err
	}
	applyStorageEnv(&cfg.Storage)
	if err := applyAIEnv(&cfg.AI); err != nil {
		return nil, err
	}
	if err := applyLogEnv(&cfg.Log, cfg.Storage.DataDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	maxTokens := 2048
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{DataDir: "assets"},
		AI: AIConfig{
			BaseURL:      "http://127.0.0.1:8081/v1",
			APIKey:       "local",
			Model:        "gemma-3-1b-it",
			MaxTokens:    &maxTokens,
			HistoryLimit: 20,
		},
		Log: LogConfig{Level: "info", Console: true},
	}
}

// Enabled 表示模型配置是否完整。
func (c AIConfig) Enabled() bool {
	return c.BaseURL != "" && c.Model != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("AI_BASE_URL and AI_MODEL must be set")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	apiKey := c.APIKey
	if apiKey == "" {
		// local servers ignore the key but the client refuses to send an empty one
		apiKey = "local"
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		APIKey:      apiKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func applyServerEnv(server *ServerConfig) error {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return nil
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		server.Addr = port
		return nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid PORT value: %q", port)
	}

	server.Addr = ":" + port
	return nil
}

func applyStorageEnv(storage *StorageConfig) {
	storage.DataDir = getEnvOrDefault("TAVERN_DATA_DIR", storage.DataDir)
	storage.ImagesDir = getEnvOrDefault("TAVERN_IMAGES_DIR", storage.ImagesDir)
	if storage.ImagesDir == "" {
		storage.ImagesDir = filepath.Join(storage.DataDir, "images")
	}
}

func applyAIEnv(ai *AIConfig) error {
	ai.BaseURL = getEnvOrDefault("AI_BASE_URL", ai.BaseURL)
	ai.APIKey = getEnvOrDefault("AI_API_KEY", ai.APIKey)
	ai.Model = getEnvOrDefault("AI_MODEL", ai.Model)

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return err
	}
	if temperature != nil {
		ai.Temperature = temperature
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return err
	}
	if topP != nil {
		ai.TopP = topP
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return err
	}
	if maxTokens != nil {
		ai.MaxTokens = maxTokens
	}

	historyLimit, err := parseOptionalIntEnv("AI_HISTORY_LIMIT")
	if err != nil {
		return err
	}
	if historyLimit != nil {
		ai.HistoryLimit = *historyLimit
	}
	if ai.HistoryLimit < 1 {
		ai.HistoryLimit = 1
	}
	return nil
}

func applyLogEnv(log *LogConfig, dataDir string) error {
	log.File = getEnvOrDefault("LOG_FILE", log.File)
	if log.File == "" {
		log.File = filepath.Join(dataDir, "logs", "tavern.log")
	}
	log.Level = getEnvOrDefault("LOG_LEVEL", log.Level)

	console, err := parseBoolEnv("LOG_CONSOLE", log.Console)
	if err != nil {
		return err
	}
	log.Console = console
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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
