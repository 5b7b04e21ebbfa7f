package config

import (
	"os"
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
	// PublicBaseURL prefixes object keys when building retrieval URLs
	// (e.g. a CDN or reverse proxy in front of the bucket).
	PublicBaseURL string
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		loadEnv()

		minioConfig = &MinioConfig{
			AccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:     os.Getenv("MINIO_SECRET_KEY"),
			Endpoint:      os.Getenv("MINIO_ENDPOINT"),
			UseSSL:        os.Getenv("MINIO_USE_SSL") == "true",
			Region:        os.Getenv("MINIO_REGION"),
			BucketName:    os.Getenv("MINIO_BUCKET_NAME"),
			PublicBaseURL: os.Getenv("MINIO_PUBLIC_BASE_URL"),
		}
	})
	return minioConfig
}
