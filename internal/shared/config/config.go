package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	DatabaseURL       string
	RedisURL          string
	HistoryMaxEntries int

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	RunEventsQueue  string

	WorkerConcurrency       int
	WorkerVisibilitySeconds int
	WorkerShutdownTimeout   time.Duration

	ExtractionProvider string
	ExtractionModel    string
	NarrationProvider  string
	NarrationModel     string
	GeminiAPIKey       string
	GeminiFallback     string
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	LLMCallTimeout     time.Duration
	LLMMaxRetries      int
	NarrateChatDraft   bool
	PromptsFile        string

	RateLimitRPS   float64
	RateLimitBurst int

	LogFile  string
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Existing
	// environment variables win.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL not set in production; run persistence is memory only")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		DatabaseURL:       dbURL,
		RedisURL:          getEnv("REDIS_URL", ""),
		HistoryMaxEntries: getInt("HISTORY_MAX_ENTRIES", 50),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		RunEventsQueue:  getEnv("RUN_EVENTS_QUEUE_URL", ""),

		WorkerConcurrency:       getInt("WORKER_CONCURRENCY", 4),
		WorkerVisibilitySeconds: getInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", 300),
		WorkerShutdownTimeout:   getDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),

		ExtractionProvider: normalizeProvider(getEnv("EXTRACTION_PROVIDER", "gemini")),
		ExtractionModel:    getEnv("EXTRACTION_MODEL", "gemini-2.0-flash-001"),
		NarrationProvider:  normalizeProvider(getEnv("NARRATION_PROVIDER", "anthropic")),
		NarrationModel:     getEnv("NARRATION_MODEL", "claude-opus-4-1-20250805"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiFallback:     getEnv("GEMINI_FALLBACK_MODEL", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		LLMCallTimeout:     getDuration("LLM_CALL_TIMEOUT", 60*time.Second),
		LLMMaxRetries:      getInt("LLM_MAX_RETRIES", 1),
		NarrateChatDraft:   getBool("NARRATE_CHAT_DRAFT", true),
		PromptsFile:        getEnv("PROMPTS_FILE", ""),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),

		LogFile:  getEnv("LOG_FILE", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// getDuration accepts Go durations ("45s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "anthropic", "claude":
		return "anthropic"
	case "openai":
		return "openai"
	case "placeholder", "none":
		return "placeholder"
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}
