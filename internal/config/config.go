package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	CatalogPath string
	DBPath      string
	OutputDir   string
	DownloadDir string

	SlackBotToken     string
	SlackChannelID    string
	SlackTimeoutMs    int
	SlackRateLimitRPS int

	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAITimeoutMs    int
	OpenAIMaxRetries   int
	OpenAIRateLimitRPS int

	WarehouseCode string
	ContextMode   bool

	// OwnerBrands maps a responsible person's display name to the brand
	// they run. Domain data, not logic; kept injectable via env.
	OwnerBrands map[string]string

	WatchIntervalSec int
	WatchAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		CatalogPath: getEnv("CATALOG_PATH", filepath.Join(cwd, "products_map.json")),
		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir:   getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		DownloadDir: getEnv("DOWNLOAD_DIR", filepath.Join(cwd, "data", "downloads")),

		SlackBotToken:     getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:    getEnv("SLACK_CHANNEL_ID", ""),
		SlackTimeoutMs:    getEnvInt("SLACK_TIMEOUT_MS", 30000),
		SlackRateLimitRPS: getEnvInt("SLACK_RATE_LIMIT_RPS", 1),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITimeoutMs:    getEnvInt("OPENAI_TIMEOUT_MS", 60000),
		OpenAIMaxRetries:   getEnvInt("OPENAI_MAX_RETRIES", 3),
		OpenAIRateLimitRPS: getEnvInt("OPENAI_RATE_LIMIT_RPS", 3),

		WarehouseCode: getEnv("WAREHOUSE_CODE", "100"),
		ContextMode:   getEnvBool("CONTEXT_MODE", true),

		OwnerBrands: getEnvMap("OWNER_BRANDS", ""),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 300),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvMap parses "키=값,키=값" pairs, e.g.
// OWNER_BRANDS="김다연=바루랩,이유주=탐뷰티,이승학=피더린".
func getEnvMap(key, fallback string) map[string]string {
	value := getEnv(key, fallback)
	out := map[string]string{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
