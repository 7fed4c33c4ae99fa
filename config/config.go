package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment     string
	Domains         []string
	CertCacheDir    string
	HTTPPort        string
	HTTPSPort       string
	DatabaseURL     string
	OpenAIAPIKey    string
	CompletionsURL  string
	EmbeddingsURL   string
	CompletionModel string
	EmbeddingModel  string
	VectorstoreRoot string
	LogDir          string
	IdleTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		Domains:         []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir:    getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		HTTPPort:        getEnv("HTTP_PORT", "8087"),
		HTTPSPort:       getEnv("HTTPS_PORT", "443"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		CompletionsURL:  getEnv("OPENAI_COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions"),
		EmbeddingsURL:   getEnv("OPENAI_EMBEDDINGS_URL", "https://api.openai.com/v1/embeddings"),
		CompletionModel: getEnv("COMPLETION_MODEL", "gpt-4o"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		VectorstoreRoot: getEnv("VECTORSTORE_ROOT", "vectorstores"),
		LogDir:          getEnv("LOG_DIR", "logs"),
		IdleTimeout:     time.Minute,
		ReadTimeout:     time.Duration(getEnvAsInt("READ_TIMEOUT", 5)) * time.Second,
		WriteTimeout:    time.Duration(getEnvAsInt("WRITE_TIMEOUT", 60)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
