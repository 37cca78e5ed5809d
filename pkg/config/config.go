package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Redis          RedisConfig
	Cache          CacheConfig
	Embedding      EmbeddingConfig
	Recommendation RecommendationConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
	// Store selects the persistence backend: "postgres" or "memory".
	Store       string
	AutoMigrate bool
}

type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string
	TTL     time.Duration
}

type EmbeddingConfig struct {
	BaseURL        string
	APIToken       string
	Model          string
	Timeout        time.Duration
	MaxConcurrency int
	RequestsPerSec float64
}

type RecommendationConfig struct {
	CollaborativeWeight  float64
	ContentWeight        float64
	DecayFactor          float64
	PopularityBoost      float64
	DiversityThreshold   float64
	DiversityPenalty     float64
	RecommendationTTL    time.Duration
	TrendingTTL          time.Duration
	TrendingWindow       time.Duration
	MaxContentCandidates int
	StageTimeout         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Hybrid Recommendation API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Store:       getEnv("APP_STORE", "postgres"),
			AutoMigrate: getEnv("APP_AUTO_MIGRATE", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "recommendations"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "memory"),
		},
		Embedding: EmbeddingConfig{
			BaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
			APIToken: getEnv("EMBEDDING_API_TOKEN", ""),
			Model:    getEnv("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
		},
	}

	if cfg.Server.RequestTimeout, err = getEnvDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Cache.TTL, err = getEnvDuration("CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Embedding.Timeout, err = getEnvDuration("EMBEDDING_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Embedding.MaxConcurrency, err = getEnvInt("EMBEDDING_MAX_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.Embedding.RequestsPerSec, err = getEnvFloat("EMBEDDING_RPS", 20); err != nil {
		return nil, err
	}

	if cfg.Recommendation, err = loadRecommendation(); err != nil {
		return nil, err
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.App.Store == "postgres" && cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.App.Store != "postgres" && cfg.App.Store != "memory" {
		return nil, fmt.Errorf("unknown store backend: %s", cfg.App.Store)
	}

	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}

	return cfg, nil
}

func loadRecommendation() (RecommendationConfig, error) {
	var (
		rc  RecommendationConfig
		err error
	)

	if rc.CollaborativeWeight, err = getEnvFloat("RECO_COLLABORATIVE_WEIGHT", 0.6); err != nil {
		return rc, err
	}
	if rc.ContentWeight, err = getEnvFloat("RECO_CONTENT_WEIGHT", 0.4); err != nil {
		return rc, err
	}
	if rc.DecayFactor, err = getEnvFloat("RECO_DECAY_FACTOR", 0.95); err != nil {
		return rc, err
	}
	if rc.PopularityBoost, err = getEnvFloat("RECO_POPULARITY_BOOST", 0.1); err != nil {
		return rc, err
	}
	if rc.DiversityThreshold, err = getEnvFloat("RECO_DIVERSITY_THRESHOLD", 0.8); err != nil {
		return rc, err
	}
	if rc.DiversityPenalty, err = getEnvFloat("RECO_DIVERSITY_PENALTY", 0.98); err != nil {
		return rc, err
	}
	if rc.RecommendationTTL, err = getEnvDuration("RECO_TTL", 7*24*time.Hour); err != nil {
		return rc, err
	}
	if rc.TrendingTTL, err = getEnvDuration("RECO_TRENDING_TTL", 24*time.Hour); err != nil {
		return rc, err
	}
	if rc.TrendingWindow, err = getEnvDuration("RECO_TRENDING_WINDOW", 7*24*time.Hour); err != nil {
		return rc, err
	}
	if rc.MaxContentCandidates, err = getEnvInt("RECO_MAX_CONTENT_CANDIDATES", 50); err != nil {
		return rc, err
	}
	if rc.StageTimeout, err = getEnvDuration("RECO_STAGE_TIMEOUT", 8*time.Second); err != nil {
		return rc, err
	}

	for name, w := range map[string]float64{
		"RECO_COLLABORATIVE_WEIGHT": rc.CollaborativeWeight,
		"RECO_CONTENT_WEIGHT":       rc.ContentWeight,
		"RECO_DECAY_FACTOR":         rc.DecayFactor,
		"RECO_DIVERSITY_THRESHOLD":  rc.DiversityThreshold,
		"RECO_DIVERSITY_PENALTY":    rc.DiversityPenalty,
	} {
		if w < 0 || w > 1 {
			return rc, fmt.Errorf("%s must be within [0,1], got %v", name, w)
		}
	}

	return rc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
