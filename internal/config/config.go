package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/nidhogg/labwork/internal/sim"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Providers  []ProviderConfig `json:"providers"`
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Simulation SimulationConfig `json:"simulation"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Endpoint    string  `json:"endpoint"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

type DiscordGatewayConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

type SimulationConfig struct {
	TickSeconds   int     `json:"tick_seconds"`
	Speed         float64 `json:"speed"`
	ChatLogMax    int     `json:"chat_log_max"`
	RelationDecay float64 `json:"relation_decay"`
	Seed          int64   `json:"seed,omitempty"`
	// Tuning is pre-filled with the canonical defaults before the file
	// is parsed, so the file only needs to name the knobs it changes.
	Tuning sim.Tuning `json:"tuning"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Config{Simulation: SimulationConfig{Tuning: sim.DefaultTuning()}}
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Simulation.TickSeconds <= 0 {
		c.Simulation.TickSeconds = 30
	}
	if c.Simulation.Speed <= 0 {
		c.Simulation.Speed = 1.0
	}
	if c.Simulation.ChatLogMax <= 0 {
		c.Simulation.ChatLogMax = 50
	}
	if c.Simulation.RelationDecay <= 0 {
		c.Simulation.RelationDecay = 0.01
	}
}
