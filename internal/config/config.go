package config

import (
	"os"
)

type Config struct {
	ListenAddr     string
	DBPath         string
	StoragePath    string
	BaseURL        string
	MaxFileSize    int64
	InitialCredits int
	Workers        int
}

func Load() *Config {
	return &Config{
		ListenAddr:     getEnv("IMGTOOLS_LISTEN_ADDR", ":8080"),
		DBPath:         getEnv("IMGTOOLS_DB_PATH", "/data/db/imagetools.db"),
		StoragePath:    getEnv("IMGTOOLS_STORAGE_PATH", "/data/outputs"),
		BaseURL:        getEnv("IMGTOOLS_BASE_URL", "http://localhost:8080"),
		MaxFileSize:    int64(getEnvInt("IMGTOOLS_MAX_FILE_SIZE", 10<<20)),
		InitialCredits: getEnvInt("IMGTOOLS_INITIAL_CREDITS", 300),
		Workers:        getEnvInt("IMGTOOLS_WORKERS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var result int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultValue
		}
		result = result*10 + int(c-'0')
	}
	return result
}
