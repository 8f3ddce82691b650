package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type KVBackend string

const (
	KVMemory    KVBackend = "memory"
	KVRedis     KVBackend = "redis"
	KVFirestore KVBackend = "firestore"
	KVRemote    KVBackend = "remote" // a cmd/kvstore instance reached over HTTP
)

type HeadBackend string

const (
	HeadFile      HeadBackend = "file"
	HeadSQLite    HeadBackend = "sqlite"
	HeadFirestore HeadBackend = "firestore"
	HeadMemory    HeadBackend = "memory"
	// HeadAuto keeps the head next to the messages: in memory when the
	// messages are, on disk otherwise.
	HeadAuto HeadBackend = "auto"
)

type HTTPConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

type KVConfig struct {
	Backend KVBackend `toml:"backend"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	FirestoreProject    string `toml:"firestore_project"`
	FirestoreCollection string `toml:"firestore_collection"`

	RemoteURL string        `toml:"remote_url"`
	Timeout   time.Duration `toml:"timeout"`
}

type HeadConfig struct {
	Backend HeadBackend `toml:"backend"`
	Path    string      `toml:"path"`
}

type LLMConfig struct {
	Provider     string        `toml:"provider"` // "anthropic", "openai", "vertex" or "mock"
	APIKey       string        `toml:"api_key"`
	APIKeyFile   string        `toml:"api_key_file"`
	Model        string        `toml:"model"`
	BaseURL      string        `toml:"base_url"`
	MaxTokens    int64         `toml:"max_tokens"`
	SystemPrompt string        `toml:"system_prompt"`
	Timeout      time.Duration `toml:"timeout"`

	GCPProjectID string `toml:"gcp_project"`
	GCPLocation  string `toml:"gcp_location"`
}

type HistoryConfig struct {
	MaxDepth int `toml:"max_depth"`
}

type SessionConfig struct {
	// SilentFailures suppresses error frames on the WebSocket channel.
	SilentFailures bool `toml:"silent_failures"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	KV      KVConfig      `toml:"kv"`
	Head    HeadConfig    `toml:"head"`
	LLM     LLMConfig     `toml:"llm"`
	History HistoryConfig `toml:"history"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		KV: KVConfig{
			Backend:   KVMemory,
			RedisAddr: "localhost:6379",
			Timeout:   10 * time.Second,
		},
		Head: HeadConfig{
			Backend: HeadAuto,
			Path:    "data/chats/chat.json",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			APIKeyFile:  "api-key.txt",
			MaxTokens:   1024,
			Timeout:     2 * time.Minute,
			GCPLocation: "us-central1",
		},
		History: HistoryConfig{MaxDepth: 10000},
		Log:     LogConfig{Level: "info"},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// Load builds the config from defaults, the optional TOML file named by
// SINGLECHAT_CONFIG, and SINGLECHAT_* env vars, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SINGLECHAT_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Head.Backend = cfg.ResolvedHeadBackend()

	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadKV is Load for processes that only serve the key/value store. Only the
// kv settings are validated.
func LoadKV() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SINGLECHAT_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.KV.Backend == KVRemote {
		return nil, errors.New("the key/value server needs a local backend, not remote")
	}
	if err := cfg.validateKV(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.HTTP.Addr = getEnv("SINGLECHAT_ADDR", c.HTTP.Addr)
	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.StaticDir = getEnv("SINGLECHAT_STATIC_DIR", c.HTTP.StaticDir)

	c.KV.Backend = KVBackend(getEnv("SINGLECHAT_KV_BACKEND", string(c.KV.Backend)))
	c.KV.RedisAddr = getEnv("SINGLECHAT_REDIS_ADDR", c.KV.RedisAddr)
	c.KV.RedisPassword = getEnv("SINGLECHAT_REDIS_PASSWORD", c.KV.RedisPassword)
	c.KV.RedisDB = getIntEnv("SINGLECHAT_REDIS_DB", c.KV.RedisDB)
	c.KV.RedisPrefix = getEnv("SINGLECHAT_REDIS_PREFIX", c.KV.RedisPrefix)
	c.KV.FirestoreProject = getEnv("SINGLECHAT_GCP_PROJECT", c.KV.FirestoreProject)
	c.KV.FirestoreCollection = getEnv("SINGLECHAT_FIRESTORE_COLLECTION", c.KV.FirestoreCollection)
	c.KV.RemoteURL = getEnv("SINGLECHAT_KV_URL", c.KV.RemoteURL)
	c.KV.Timeout = getDurationEnv("SINGLECHAT_KV_TIMEOUT", c.KV.Timeout)

	c.Head.Backend = HeadBackend(getEnv("SINGLECHAT_HEAD_BACKEND", string(c.Head.Backend)))
	c.Head.Path = getEnv("SINGLECHAT_HEAD_PATH", c.Head.Path)

	c.LLM.Provider = getEnv("SINGLECHAT_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("SINGLECHAT_API_KEY", c.LLM.APIKey)
	c.LLM.APIKeyFile = getEnv("SINGLECHAT_API_KEY_FILE", c.LLM.APIKeyFile)
	c.LLM.Model = getEnv("SINGLECHAT_MODEL_NAME", c.LLM.Model)
	c.LLM.BaseURL = getEnv("SINGLECHAT_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.MaxTokens = int64(getIntEnv("SINGLECHAT_MAX_TOKENS", int(c.LLM.MaxTokens)))
	c.LLM.SystemPrompt = getEnv("SINGLECHAT_SYSTEM_PROMPT", c.LLM.SystemPrompt)
	c.LLM.Timeout = getDurationEnv("SINGLECHAT_LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.GCPProjectID = getEnv("SINGLECHAT_GCP_PROJECT", c.LLM.GCPProjectID)
	c.LLM.GCPLocation = getEnv("SINGLECHAT_GCP_LOCATION", c.LLM.GCPLocation)
	if getBoolEnv("SINGLECHAT_USE_MOCK_LLM", false) {
		c.LLM.Provider = "mock"
	}

	c.History.MaxDepth = getIntEnv("SINGLECHAT_HISTORY_MAX_DEPTH", c.History.MaxDepth)
	c.Session.SilentFailures = getBoolEnv("SINGLECHAT_SILENT_FAILURES", c.Session.SilentFailures)
	c.Log.Level = getEnv("SINGLECHAT_LOG_LEVEL", c.Log.Level)
}

// resolveAPIKey reads the key file when no key was given directly.
// A missing file is not an error here; Validate decides if a key is needed.
func (c *Config) resolveAPIKey() error {
	if c.LLM.APIKey != "" || c.LLM.APIKeyFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.LLM.APIKeyFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read api key file: %w", err)
	}

	c.LLM.APIKey = strings.TrimSpace(string(data))
	return nil
}

// ResolvedHeadBackend returns the head backend to open, with HeadAuto
// replaced by the backend that matches the message store.
func (c *Config) ResolvedHeadBackend() HeadBackend {
	if c.Head.Backend != HeadAuto {
		return c.Head.Backend
	}
	if c.KV.Backend == KVMemory {
		return HeadMemory
	}
	return HeadFile
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if err := c.validateKV(); err != nil {
		return err
	}

	head := c.ResolvedHeadBackend()
	// A durable head over in-memory messages names hashes that are gone after
	// a restart, and the next turn would fail to load them.
	if c.KV.Backend == KVMemory && head != HeadMemory {
		return fmt.Errorf("the %s head backend needs a durable kv backend, not memory", head)
	}

	switch head {
	case HeadFile, HeadSQLite:
		if c.Head.Path == "" {
			return fmt.Errorf("head.path is required for the %s head backend", head)
		}
	case HeadFirestore:
		if c.KV.FirestoreProject == "" {
			return errors.New("kv.firestore_project is required for the firestore head backend")
		}
	case HeadMemory:
	default:
		return fmt.Errorf("unknown head backend %q", c.Head.Backend)
	}

	switch c.LLM.Provider {
	case "anthropic", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider", c.LLM.Provider)
		}
	case "vertex":
		if c.LLM.GCPProjectID == "" || c.LLM.GCPLocation == "" {
			return errors.New("llm.gcp_project and llm.gcp_location are required for the vertex provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.LLM.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("llm.max_tokens must be at most %d", math.MaxInt32)
	}
	if c.History.MaxDepth <= 0 {
		return errors.New("history.max_depth must be positive")
	}

	return nil
}

func (c *Config) validateKV() error {
	switch c.KV.Backend {
	case KVMemory:
	case KVRedis:
		if c.KV.RedisAddr == "" {
			return errors.New("kv.redis_addr is required for the redis backend")
		}
	case KVFirestore:
		if c.KV.FirestoreProject == "" {
			return errors.New("kv.firestore_project is required for the firestore backend")
		}
	case KVRemote:
		if c.KV.RemoteURL == "" {
			return errors.New("kv.remote_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown kv backend %q", c.KV.Backend)
	}

	return nil
}
