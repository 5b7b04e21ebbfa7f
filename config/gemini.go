package config

import (
	"os"
	"sync"
)

var (
	geminiOnce   sync.Once
	geminiConfig *GeminiConfig
)

type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
	GenerateModel  string
	// VisionModel handles image-to-text OCR requests.
	VisionModel string
}

func GetGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		loadEnv()

		geminiConfig = &GeminiConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			EmbeddingModel: envOr("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			GenerateModel:  envOr("GEMINI_GENERATE_MODEL", "gemini-1.5-flash"),
			VisionModel:    envOr("GEMINI_VISION_MODEL", "gemini-1.5-flash"),
		}
	})
	return geminiConfig
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
