// Package config loads process configuration from environment variables,
// following the same Load()/Validate() shape across all three role
// processes (league manager, referee, player).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything a role process needs to start.
type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	Registration RegistrationConfig
	Scheduling   SchedulingConfig
	Timeouts     TimeoutConfig
	Retries      RetryConfig
	Scoring      map[string]ScoreRule
}

// ServerConfig contains the role process's own HTTP listener settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig contains all storage backend settings. Referee and
// Player processes leave MySQL/MongoDB empty — they hold no persisted
// state of their own.
type DatabaseConfig struct {
	MySQL   MySQLConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RegistrationConfig governs the REGISTRATION phase.
type RegistrationConfig struct {
	WindowSeconds int
	MinPlayers    int
	MinReferees   int
}

// SchedulingConfig governs intra-round match concurrency.
type SchedulingConfig struct {
	ConcurrentMatchesPerRound bool
}

// TimeoutConfig covers every cooperative protocol timeout.
type TimeoutConfig struct {
	RegistrationResponseMS int
	MatchJoinAckMS         int
	MoveResponseMS         int
	ResultReportMS         int
}

func (t TimeoutConfig) RegistrationResponse() time.Duration {
	return time.Duration(t.RegistrationResponseMS) * time.Millisecond
}
func (t TimeoutConfig) MatchJoinAck() time.Duration {
	return time.Duration(t.MatchJoinAckMS) * time.Millisecond
}
func (t TimeoutConfig) MoveResponse() time.Duration {
	return time.Duration(t.MoveResponseMS) * time.Millisecond
}
func (t TimeoutConfig) ResultReport() time.Duration {
	return time.Duration(t.ResultReportMS) * time.Millisecond
}

// RetryConfig governs the transport client's capped exponential backoff.
type RetryConfig struct {
	MaxAttempts int
	BackoffMS   int
}

// ScoreRule is one game type's points table. The default is {3,1,0};
// overrides must be non-negative integers.
type ScoreRule struct {
	Win  int
	Draw int
	Loss int
}

const defaultScoringKey = "default"

// DefaultScoreRule is applied to any game_type without its own override.
var DefaultScoreRule = ScoreRule{Win: 3, Draw: 1, Loss: 0}

// Load reads configuration from the environment, applying an optional
// .env file for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MySQL: MySQLConfig{
				DSN:             getEnvOrDefault("MYSQL_DSN", ""),
				MaxOpenConns:    getIntOrDefault("MYSQL_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getIntOrDefault("MYSQL_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getDurationOrDefault("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			MongoDB: MongoDBConfig{
				URI:      getEnvOrDefault("MONGO_URI", ""),
				Database: getEnvOrDefault("MONGO_DATABASE", "league_coordinator"),
			},
			Redis: RedisConfig{
				Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
				Password: getEnvOrDefault("REDIS_PASSWORD", ""),
				DB:       getIntOrDefault("REDIS_DB", 0),
			},
		},
		Registration: RegistrationConfig{
			WindowSeconds: getIntOrDefault("REGISTRATION_WINDOW_SECONDS", 300),
			MinPlayers:    getIntOrDefault("MIN_PLAYERS", 2),
			MinReferees:   getIntOrDefault("MIN_REFEREES", 1),
		},
		Scheduling: SchedulingConfig{
			ConcurrentMatchesPerRound: getBoolOrDefault("CONCURRENT_MATCHES_PER_ROUND", true),
		},
		Timeouts: TimeoutConfig{
			RegistrationResponseMS: getIntOrDefault("TIMEOUT_REGISTRATION_RESPONSE_MS", 5000),
			MatchJoinAckMS:         getIntOrDefault("TIMEOUT_MATCH_JOIN_ACK_MS", 5000),
			MoveResponseMS:         getIntOrDefault("TIMEOUT_MOVE_RESPONSE_MS", 10000),
			ResultReportMS:         getIntOrDefault("TIMEOUT_RESULT_REPORT_MS", 5000),
		},
		Retries: RetryConfig{
			MaxAttempts: getIntOrDefault("RETRY_MAX_ATTEMPTS", 5),
			BackoffMS:   getIntOrDefault("RETRY_BACKOFF_MS", 200),
		},
	}

	scoring, err := loadScoringTable()
	if err != nil {
		return nil, fmt.Errorf("invalid scoring configuration: %w", err)
	}
	cfg.Scoring = scoring

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ScoreRuleFor returns the configured scoring table for game_type, or
// DefaultScoreRule when no override exists.
func (c *Config) ScoreRuleFor(gameType string) ScoreRule {
	if rule, ok := c.Scoring[gameType]; ok {
		return rule
	}
	if rule, ok := c.Scoring[defaultScoringKey]; ok {
		return rule
	}
	return DefaultScoreRule
}

// loadScoringTable parses SCORING_<GAME_TYPE> env vars of the form
// "win,draw,loss" (e.g. SCORING_TICTACTOE="3,1,0"). An override whose
// components are not non-negative integers fails config load outright.
func loadScoringTable() (map[string]ScoreRule, error) {
	table := map[string]ScoreRule{defaultScoringKey: DefaultScoreRule}
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(key, "SCORING_") || key == "SCORING_" {
			continue
		}
		gameType := strings.TrimPrefix(key, "SCORING_")
		rule, err := parseScoreRule(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		table[gameType] = rule
	}
	return table, nil
}

func parseScoreRule(value string) (ScoreRule, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return ScoreRule{}, fmt.Errorf("expected \"win,draw,loss\", got %q", value)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return ScoreRule{}, fmt.Errorf("component %d (%q) is not an integer", i, p)
		}
		if n < 0 {
			return ScoreRule{}, fmt.Errorf("component %d (%d) must be non-negative", i, n)
		}
		nums[i] = n
	}
	return ScoreRule{Win: nums[0], Draw: nums[1], Loss: nums[2]}, nil
}

// Validate checks that all required configuration is present and
// internally consistent.
func (c *Config) Validate() error {
	if c.Registration.MinPlayers < 2 {
		return fmt.Errorf("MIN_PLAYERS must be >= 2")
	}
	if c.Registration.MinReferees < 1 {
		return fmt.Errorf("MIN_REFEREES must be >= 1")
	}
	if c.Retries.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	for gameType, rule := range c.Scoring {
		if rule.Win < 0 || rule.Draw < 0 || rule.Loss < 0 {
			return fmt.Errorf("scoring table for %s has a negative value", gameType)
		}
	}
	return nil
}

// RequireLeagueManagerStorage validates that the storage DSNs the League
// Manager process needs are present; Referee/Player processes never
// call this since they hold no persisted league state.
func (c *Config) RequireLeagueManagerStorage() error {
	if c.Database.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.Database.MongoDB.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
