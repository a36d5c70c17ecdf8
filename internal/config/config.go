package config

import (
	"errors"
	"os"
	"strconv"
)

// app config: provider selection happens here, once, at startup.
type Config struct {
	Port          string
	JWTSecret     string
	RedisAddr     string
	LLMProvider   string
	STTProvider   string
	TTSProvider   string
	BaseURL       string
	TokenTTLHours int
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		LLMProvider:   getEnvOrDefault("AI_PROVIDER", "gemini"),
		STTProvider:   getEnvOrDefault("STT_PROVIDER", "deepgram"),
		TTSProvider:   getEnvOrDefault("TTS_PROVIDER", "cartesia"),
		BaseURL:       getEnvOrDefault("BASE_URL", "http://localhost:5173"),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 72),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if config.LLMProvider != "gemini" {
		return errors.New("unsupported AI provider: " + config.LLMProvider + ". Currently supported: gemini")
	}
	switch config.STTProvider {
	case "deepgram", "cartesia":
	default:
		return errors.New("unsupported STT provider: " + config.STTProvider + ". Currently supported: deepgram, cartesia")
	}
	switch config.TTSProvider {
	case "deepgram", "cartesia":
	default:
		return errors.New("unsupported TTS provider: " + config.TTSProvider + ". Currently supported: deepgram, cartesia")
	}
	if config.TokenTTLHours <= 0 {
		return errors.New("TOKEN_TTL_HOURS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
