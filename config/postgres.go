package config

import (
	"os"
	"sync"
)

var (
	postgresOnce   sync.Once
	postgresConfig *PostgresConfig
)

type PostgresConfig struct {
	// DatabaseURL is a full pgx connection string.
	DatabaseURL string
	// EmbeddingDim must match the vector column declared in the schema.
	// A vector of any other length is a configuration error, not data.
	EmbeddingDim int
}

func GetPostgresConfig() *PostgresConfig {
	postgresOnce.Do(func() {
		loadEnv()

		postgresConfig = &PostgresConfig{
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			EmbeddingDim: 768,
		}
	})
	return postgresConfig
}
