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
)

// Config aggregates every tunable of the service.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Capture CaptureConfig
	Threads ThreadsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	capture, err := loadCaptureConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Capture: capture,
		Threads: ThreadsConfig{DBPath: strings.TrimSpace(os.Getenv("THREADS_DB_PATH"))},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the completion-service model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
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

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// CaptureConfig tunes the session pipeline's timing behavior.
type CaptureConfig struct {
	// SilenceDeadline ends the session after this much continuous silence.
	SilenceDeadline time.Duration
	// MaxDuration is the hard cap on a single session.
	MaxDuration time.Duration
	// WarningWindow is how far ahead of a deadline the warning fires.
	WarningWindow time.Duration
	// ExtendIncrement is added to MaxDuration when the user extends.
	ExtendIncrement time.Duration
	// ResetDelay is how long after an ingest the capture source's
	// working text is cleared (the ingest-then-reset dedup contract).
	ResetDelay time.Duration
	// Debounce delays final aggregation so in-flight capture events settle.
	Debounce time.Duration
	// AmplitudeThreshold is the minimum voice level treated as activity.
	AmplitudeThreshold float64
}

func loadCaptureConfig() (CaptureConfig, error) {
	silence, err := parseDurationEnv("CAPTURE_SILENCE_DEADLINE", 75*time.Second)
	if err != nil {
		return CaptureConfig{}, err
	}

	maxDuration, err := parseDurationEnv("CAPTURE_MAX_DURATION", 30*time.Minute)
	if err != nil {
		return CaptureConfig{}, err
	}

	warning, err := parseDurationEnv("CAPTURE_WARNING_WINDOW", 10*time.Second)
	if err != nil {
		return CaptureConfig{}, err
	}

	extend, err := parseDurationEnv("CAPTURE_EXTEND_INCREMENT", 5*time.Minute)
	if err != nil {
		return CaptureConfig{}, err
	}

	reset, err := parseDurationEnv("CAPTURE_RESET_DELAY", 100*time.Millisecond)
	if err != nil {
		return CaptureConfig{}, err
	}

	debounce, err := parseDurationEnv("CAPTURE_DEBOUNCE", 500*time.Millisecond)
	if err != nil {
		return CaptureConfig{}, err
	}

	threshold := 0.05
	if raw, err := parseOptionalFloatEnv("CAPTURE_AMPLITUDE_THRESHOLD"); err != nil {
		return CaptureConfig{}, err
	} else if raw != nil {
		threshold = *raw
	}

	return CaptureConfig{
		SilenceDeadline:    silence,
		MaxDuration:        maxDuration,
		WarningWindow:      warning,
		ExtendIncrement:    extend,
		ResetDelay:         reset,
		Debounce:           debounce,
		AmplitudeThreshold: threshold,
	}, nil
}

// ThreadsConfig selects the storage collaborator backend. An empty
// DBPath keeps threads in memory.
type ThreadsConfig struct {
	DBPath string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
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
