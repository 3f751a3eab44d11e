package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		Monobank   Monobank   `yaml:"monobank"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		// Cost of the password to hash. Must be greater than 3.
		PasswordHashCost int `yaml:"password_hash_cost" env-default:"14"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for the Monobank personal API client and the ingest worker.
	Monobank struct {
		// Base address of the Monobank API.
		Address string `yaml:"address" env:"MONOBANK_ADDRESS" env-default:"https://api.monobank.ua"`
		// Access token used by the background ingest worker.
		Token string `yaml:"token" env:"MONOBANK_TOKEN"`
		// Jar ids the worker pulls statements for.
		Jars []string `yaml:"jars" env:"MONOBANK_JARS"`
		// HTTP client timeout.
		Timeout time.Duration `yaml:"timeout" env-default:"10s"`
		// The statement endpoint allows one request per minute per account.
		StatementInterval time.Duration `yaml:"statement_interval" env-default:"60s"`
		// How often the worker wakes up to pull fresh statements.
		IngestInterval time.Duration `yaml:"ingest_interval" env:"INGEST_INTERVAL" env-default:"5m"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb"`
		MaxBackups int `yaml:"max_backups"`
		MaxAgeDays int `yaml:"max_age_days"`
	}
	// Config for JWT.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	cfg, err := load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	// Configuration yaml file path.
	configPath := fs.String("config", "./config/local.yml", "path to the config file")
	address := fs.String("a", "", "server startup address")
	dsn := fs.String("d", "", "server data source name")
	monobank := fs.String("m", "", "monobank API address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Check if file exists.
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", *configPath)
	}

	var cfg Config

	// Load from YAML cfg file.
	bytes, err := os.Open(*configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %s", *configPath)
	}
	if err = cleanenv.ParseYAML(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", *configPath, err)
	}

	// Only flags the caller actually passed override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.HTTPServer.Address = *address
		case "d":
			cfg.DSN = *dsn
		case "m":
			cfg.Monobank.Address = *monobank
		}
	})

	// Read environment variables.
	if err = cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	return &cfg, nil
}
