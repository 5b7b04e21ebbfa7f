package config

import (
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	pipelineOnce   sync.Once
	pipelineConfig *PipelineConfig
)

// PipelineConfig holds the tuning knobs for one ingestion run.
// Defaults are applied first, then an optional pipeline.yaml overrides them.
type PipelineConfig struct {
	// Chunking
	MaxChunkTokens     int `yaml:"maxChunkTokens"`
	ChunkOverlapTokens int `yaml:"chunkOverlapTokens"`

	// Entity extraction windows are larger than embedding chunks.
	EntityWindowChars  int `yaml:"entityWindowChars"`
	EntityOverlapChars int `yaml:"entityOverlapChars"`

	// Concurrency bounds
	EmbedConcurrency  int `yaml:"embedConcurrency"`
	EntityConcurrency int `yaml:"entityConcurrency"`

	// Extraction limits
	MaxPDFPages int `yaml:"maxPdfPages"`

	// Thumbnails
	ThumbnailMaxPixels int `yaml:"thumbnailMaxPixels"`

	// Timeouts per external call class
	StorageTimeout  time.Duration `yaml:"storageTimeout"`
	EmbedTimeout    time.Duration `yaml:"embedTimeout"`
	GenerateTimeout time.Duration `yaml:"generateTimeout"`

	// OCRBackend selects the image text extractor: "gemini" or "tesseract".
	OCRBackend string `yaml:"ocrBackend"`
}

func defaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxChunkTokens:     800,
		ChunkOverlapTokens: 200,
		EntityWindowChars:  6000,
		EntityOverlapChars: 500,
		EmbedConcurrency:   5,
		EntityConcurrency:  3,
		MaxPDFPages:        100,
		ThumbnailMaxPixels: 300,
		StorageTimeout:     60 * time.Second,
		EmbedTimeout:       30 * time.Second,
		GenerateTimeout:    120 * time.Second,
		OCRBackend:         "gemini",
	}
}

func GetPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		loadEnv()

		pipelineConfig = defaultPipelineConfig()

		path := os.Getenv("PIPELINE_CONFIG_PATH")
		if path == "" {
			path = "pipeline.yaml"
		}

		data, err := os.ReadFile(path)
		if err != nil {
			// No file is fine; defaults apply.
			return
		}
		if err := yaml.Unmarshal(data, pipelineConfig); err != nil {
			log.Printf("Warning: invalid pipeline config at %s: %v, using defaults", path, err)
			pipelineConfig = defaultPipelineConfig()
		}
	})
	return pipelineConfig
}
