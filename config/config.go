package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tickstore/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	QuestDB     QuestDBConfig     `json:"questdb"`
	Postgres    PostgresConfig    `json:"postgres"`
	Redis       RedisConfig       `json:"redis"`
	Archive     ArchiveConfig     `json:"archive"`
	API         APIConfig         `json:"api"`
	Instruments InstrumentsConfig `json:"instruments"`
}

type QuestDBConfig struct {
	Host        string `json:"host"`
	ILPPort     int    `json:"ilp_port"`
	HTTPPort    int    `json:"http_port"`
	AltILPPort  int    `json:"alt_ilp_port"`
	AltHTTPPort int    `json:"alt_http_port"`

	QueueCapacity      int    `json:"queue_capacity"`
	MaxBatchSize       int    `json:"max_batch_size"`
	MaxBatchAge        string `json:"max_batch_age"`
	HealthCheckTimeout string `json:"health_check_timeout"`
	FlushTimeout       string `json:"flush_timeout"`
	StatsLogInterval   string `json:"stats_log_interval"`

	// Private fields to store parsed durations
	maxBatchAgeDuration        time.Duration
	healthCheckTimeoutDuration time.Duration
	flushTimeoutDuration       time.Duration
	statsLogIntervalDuration   time.Duration
}

type PostgresConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	DBName          string `json:"DBName"`
	MaxConnections  int    `json:"max_connections"`
	MinConnections  int    `json:"min_connections"`
	MaxConnLifetime string `json:"max_conn_lifetime"`
	MaxConnIdleTime string `json:"max_conn_idle_time"`

	// Private fields to store parsed durations
	maxConnLifetimeDuration time.Duration
	maxConnIdleTimeDuration time.Duration
}

type RedisConfig struct {
	Host           string `json:"host"`
	Port           string `json:"port"`
	Password       string `json:"password"`
	ConnectTimeout string `json:"connect_timeout"`

	connectTimeoutDuration time.Duration
}

type ArchiveConfig struct {
	BaseDir string `json:"base_dir"`
}

type APIConfig struct {
	Port string `json:"port"`
}

type InstrumentsConfig struct {
	DataDir string `json:"data_dir"`
}

var (
	instance *Config
	once     sync.Once
)

// GetConfig loads configuration and handles errors internally
func GetConfig() *Config {
	once.Do(func() {
		instance = loadConfig()
	})
	return instance
}

func loadConfig() *Config {
	log := logger.GetLogger()

	// Environment overrides live in .env; missing file is fine
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment overrides from .env")
	}

	workDir, err := os.Getwd()
	if err != nil {
		log.Error("Failed to get working directory", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	configPath := filepath.Join(workDir, "config", "config.json")

	configFile, err := os.ReadFile(configPath)
	if err != nil {
		log.Error("Config file not found", map[string]interface{}{
			"error": err.Error(),
			"path":  configPath,
		})
		os.Exit(1)
	}

	var config Config
	if err := json.Unmarshal(configFile, &config); err != nil {
		log.Error("Failed to parse config file", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	if err := config.QuestDB.ToDuration(); err != nil {
		log.Error("Invalid questdb durations", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	if err := config.Postgres.ToDuration(); err != nil {
		log.Error("Invalid postgres durations", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	if err := config.Redis.ToDuration(); err != nil {
		log.Error("Invalid redis durations", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	log.Info("Successfully loaded config", map[string]interface{}{
		"path": configPath,
	})

	return &config
}

// applyEnvOverrides lets credentials and hosts come from the environment
// instead of config.json
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUESTDB_HOST"); v != "" {
		c.QuestDB.Host = v
	}
	if v := os.Getenv("PG_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("PG_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) applyDefaults() {
	q := &c.QuestDB
	if q.Host == "" {
		q.Host = "localhost"
	}
	if q.ILPPort == 0 {
		q.ILPPort = 9009
	}
	if q.HTTPPort == 0 {
		q.HTTPPort = 9000
	}
	if q.AltILPPort == 0 {
		q.AltILPPort = 19009
	}
	if q.AltHTTPPort == 0 {
		q.AltHTTPPort = 19000
	}
	if q.QueueCapacity == 0 {
		q.QueueCapacity = 100000
	}
	if q.MaxBatchSize == 0 {
		q.MaxBatchSize = 1000
	}
	if q.MaxBatchAge == "" {
		q.MaxBatchAge = "100ms"
	}
	if q.HealthCheckTimeout == "" {
		q.HealthCheckTimeout = "2s"
	}
	if q.FlushTimeout == "" {
		q.FlushTimeout = "500ms"
	}
	if q.StatsLogInterval == "" {
		q.StatsLogInterval = "60s"
	}

	p := &c.Postgres
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.User == "" {
		p.User = "postgres"
	}
	if p.DBName == "" {
		p.DBName = "quantalgo_db"
	}
	if p.MaxConnections == 0 {
		p.MaxConnections = 10
	}
	if p.MinConnections == 0 {
		p.MinConnections = 2
	}
	if p.MaxConnLifetime == "" {
		p.MaxConnLifetime = "1h"
	}
	if p.MaxConnIdleTime == "" {
		p.MaxConnIdleTime = "30m"
	}

	r := &c.Redis
	if r.Host == "" {
		r.Host = "localhost"
	}
	if r.Port == "" {
		r.Port = "6379"
	}
	if r.ConnectTimeout == "" {
		r.ConnectTimeout = "5s"
	}

	if c.Archive.BaseDir == "" {
		c.Archive.BaseDir = "data/exports"
	}
	if c.API.Port == "" {
		c.API.Port = "8080"
	}
	if c.Instruments.DataDir == "" {
		c.Instruments.DataDir = "instruments"
	}
}

// ToDuration converts the string values to time.Duration after unmarshaling
func (q *QuestDBConfig) ToDuration() error {
	var err error
	q.maxBatchAgeDuration, err = time.ParseDuration(q.MaxBatchAge)
	if err != nil {
		return fmt.Errorf("invalid max_batch_age duration: %w", err)
	}

	q.healthCheckTimeoutDuration, err = time.ParseDuration(q.HealthCheckTimeout)
	if err != nil {
		return fmt.Errorf("invalid health_check_timeout duration: %w", err)
	}

	q.flushTimeoutDuration, err = time.ParseDuration(q.FlushTimeout)
	if err != nil {
		return fmt.Errorf("invalid flush_timeout duration: %w", err)
	}

	q.statsLogIntervalDuration, err = time.ParseDuration(q.StatsLogInterval)
	if err != nil {
		return fmt.Errorf("invalid stats_log_interval duration: %w", err)
	}

	return nil
}

func (q *QuestDBConfig) GetMaxBatchAge() time.Duration {
	return q.maxBatchAgeDuration
}

func (q *QuestDBConfig) GetHealthCheckTimeout() time.Duration {
	return q.healthCheckTimeoutDuration
}

func (q *QuestDBConfig) GetFlushTimeout() time.Duration {
	return q.flushTimeoutDuration
}

func (q *QuestDBConfig) GetStatsLogInterval() time.Duration {
	return q.statsLogIntervalDuration
}

func (p *PostgresConfig) ToDuration() error {
	var err error
	p.maxConnLifetimeDuration, err = time.ParseDuration(p.MaxConnLifetime)
	if err != nil {
		return fmt.Errorf("invalid max_conn_lifetime duration: %w", err)
	}

	p.maxConnIdleTimeDuration, err = time.ParseDuration(p.MaxConnIdleTime)
	if err != nil {
		return fmt.Errorf("invalid max_conn_idle_time duration: %w", err)
	}

	return nil
}

func (p *PostgresConfig) GetMaxConnLifetime() time.Duration {
	return p.maxConnLifetimeDuration
}

func (p *PostgresConfig) GetMaxConnIdleTime() time.Duration {
	return p.maxConnIdleTimeDuration
}

func (r *RedisConfig) ToDuration() error {
	var err error
	r.connectTimeoutDuration, err = time.ParseDuration(r.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("invalid connect_timeout duration: %w", err)
	}
	return nil
}

func (r *RedisConfig) GetConnectTimeout() time.Duration {
	return r.connectTimeoutDuration
}
