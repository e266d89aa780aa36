package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RestaurantName     string
	Timezone           string
	FallbackContext    string
	BookingStateTTL    time.Duration
	MergeDateTimeStep  bool
	ReservationMinutes int

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	CallStateTTL  time.Duration

	VoiceWebhookSecret string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	LLMProvider             string
	BedrockModelID          string
	BedrockEmbeddingModelID string
	GeminiAPIKey            string
	GeminiModelID           string
	LLMMaxTokens            int
	LLMTemperature          float64

	// Knowledge base
	KnowledgeDir        string
	KnowledgeS3Bucket   string
	KnowledgeS3Prefix   string
	VectorStorePath     string
	RetrievalTopK       int
	RetrievalMinScore   float64
	KnowledgeChunkWords int

	// Google Calendar and Sheets
	GoogleCredentialsFile string
	GoogleCalendarID      string
	GoogleSheetID         string
	GoogleSheetRange      string

	// Confirmation email
	EmailProvider     string
	EmailFromAddress  string
	EmailFromName     string
	SendGridAPIKey    string
	SendGridFromEmail string

	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RestaurantName:     getEnv("RESTAURANT_NAME", "Our Restaurant"),
		Timezone:           getEnv("RESTAURANT_TIMEZONE", "UTC"),
		FallbackContext:    getEnv("FALLBACK_CONTEXT", ""),
		BookingStateTTL:    getEnvAsDuration("BOOKING_STATE_TTL", 30*time.Minute),
		MergeDateTimeStep:  getEnvAsBool("BOOKING_MERGE_DATETIME", false),
		ReservationMinutes: getEnvAsInt("RESERVATION_DURATION_MINUTES", 120),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		CallStateTTL:       getEnvAsDuration("VOICE_CALL_STATE_TTL", 2*time.Hour),
		VoiceWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LLMProvider:             strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockEmbeddingModelID: getEnv("BEDROCK_EMBEDDING_MODEL_ID", "amazon.titan-embed-text-v2:0"),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:           getEnv("GEMINI_MODEL_ID", ""),
		LLMMaxTokens:            getEnvAsInt("LLM_MAX_TOKENS", 512),
		LLMTemperature:          getEnvAsFloat("LLM_TEMPERATURE", 0.3),

		KnowledgeDir:        getEnv("KNOWLEDGE_DIR", "knowledge"),
		KnowledgeS3Bucket:   getEnv("KNOWLEDGE_S3_BUCKET", ""),
		KnowledgeS3Prefix:   getEnv("KNOWLEDGE_S3_PREFIX", ""),
		VectorStorePath:     getEnv("VECTOR_STORE_PATH", "data/vectors"),
		RetrievalTopK:       getEnvAsInt("RETRIEVAL_TOP_K", 3),
		RetrievalMinScore:   getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0.3),
		KnowledgeChunkWords: getEnvAsInt("KNOWLEDGE_CHUNK_WORDS", 500),

		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleSheetID:         getEnv("GOOGLE_SHEET_ID", ""),
		GoogleSheetRange:      getEnv("GOOGLE_SHEET_RANGE", "Reservations!A:I"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Restaurant Concierge"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
