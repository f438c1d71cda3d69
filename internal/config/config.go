package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	EndpointURL string
	Token       string

	DataDir   string
	DBPath    string
	AttachDir string

	OracleBaseURL string
	OracleModel   string
	OracleAPIKey  string
	OracleTimeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	dataDir := getEnv("TASKBRIDGE_DATA_DIR", "data")
	return Config{
		EndpointURL: getEnv("TASKBRIDGE_ENDPOINT", "http://localhost:8080"),
		Token:       getEnv("TASKBRIDGE_TOKEN", ""),

		DataDir:   dataDir,
		DBPath:    getEnv("TASKBRIDGE_DB_PATH", filepath.Join(dataDir, "taskbridge.db")),
		AttachDir: getEnv("TASKBRIDGE_ATTACH_DIR", filepath.Join(dataDir, "attachments")),

		OracleBaseURL: getEnv("TASKBRIDGE_ORACLE_URL", ""),
		OracleModel:   getEnv("TASKBRIDGE_ORACLE_MODEL", ""),
		OracleAPIKey:  getEnv("TASKBRIDGE_ORACLE_API_KEY", ""),
		OracleTimeout: getEnvDuration("TASKBRIDGE_ORACLE_TIMEOUT_SECONDS", 120*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
