package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the environment-driven service configuration. All knobs have
// local-development defaults; only deployments that want the GCS artifact
// store need to set anything.
type Config struct {
	Port            string
	DBPath          string
	ArtifactDir     string
	GCSBucket       string
	LogLevel        string
	Timezone        string
	RetentionHours  int
	RenderWorkers   int
	RenderQueueSize int
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DBPath:          getenv("DB_PATH", "receiptgen.db"),
		ArtifactDir:     getenv("ARTIFACT_DIR", "generated_pdfs"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Timezone:        getenv("TZ_NAME", "Africa/Nairobi"),
		RetentionHours:  24,
		RenderWorkers:   5,
		RenderQueueSize: 100,
	}

	var err error
	if cfg.RetentionHours, err = getint("RETENTION_HOURS", cfg.RetentionHours); err != nil {
		return nil, err
	}
	if cfg.RenderWorkers, err = getint("RENDER_WORKERS", cfg.RenderWorkers); err != nil {
		return nil, err
	}
	if cfg.RenderQueueSize, err = getint("RENDER_QUEUE_SIZE", cfg.RenderQueueSize); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}
