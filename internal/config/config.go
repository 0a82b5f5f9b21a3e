package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"labstats/domain/tables"
	"labstats/internal/errors"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Append log backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Paths    PathConfig
	Analysis AnalysisConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Logging  LoggingConfig

	// Tables is the append whitelist, from TABLES_FILE or the defaults
	Tables *tables.Whitelist
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host        string
	Port        string
	GinMode     string
	CORSOrigins []string
}

// PathConfig holds file system paths
type PathConfig struct {
	RootDir  string
	ToolsDir string
	DataDir  string
}

// AnalysisConfig bounds the stats endpoint
type AnalysisConfig struct {
	MaxUploadMB   int
	MaxConcurrent int
}

// StorageConfig selects the append log backend
type StorageConfig struct {
	Backend    string
	TablesFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// LoggingConfig selects the zap level and encoder
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags reads the environment, then lets command-line flags override it.
// A nil args slice skips flag parsing.
func LoadWithFlags(args []string) (*Config, error) {
	config := fromEnv()

	if args != nil {
		fs := pflag.NewFlagSet("labstats", pflag.ContinueOnError)
		config.BindFlags(fs)
		if err := fs.Parse(args); err != nil {
			return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to parse flags")
		}
	}

	config.resolvePaths()

	if config.Storage.TablesFile != "" {
		wl, err := LoadTables(config.Storage.TablesFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load tables file")
		}
		config.Tables = wl
	} else {
		config.Tables = tables.Default()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func fromEnv() *Config {
	root := getEnvOrDefault("ROOT_DIR", ".")
	return &Config{
		Server: ServerConfig{
			Host:        getEnvOrDefault("HOST", "0.0.0.0"),
			Port:        getEnvOrDefault("PORT", "8000"),
			GinMode:     getEnvOrDefault("GIN_MODE", "release"),
			CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		},
		Paths: PathConfig{
			RootDir:  root,
			ToolsDir: os.Getenv("TOOLS_DIR"),
			DataDir:  os.Getenv("DATA_DIR"),
		},
		Analysis: AnalysisConfig{
			MaxUploadMB:   getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
			MaxConcurrent: getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 8),
		},
		Storage: StorageConfig{
			Backend:    getEnvOrDefault("APPEND_BACKEND", BackendFile),
			TablesFile: os.Getenv("TABLES_FILE"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// BindFlags registers flags that default to the current values
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Host, "host", c.Server.Host, "listen host")
	fs.StringVarP(&c.Server.Port, "port", "p", c.Server.Port, "listen port")
	fs.StringVar(&c.Server.GinMode, "gin-mode", c.Server.GinMode, "gin mode (debug, release, test)")
	fs.StringSliceVar(&c.Server.CORSOrigins, "cors-origins", c.Server.CORSOrigins, "allowed CORS origins")
	fs.StringVar(&c.Paths.RootDir, "root", c.Paths.RootDir, "server root directory")
	fs.StringVar(&c.Paths.ToolsDir, "tools-dir", c.Paths.ToolsDir, "dashboard directory served under /lab")
	fs.StringVar(&c.Paths.DataDir, "data-dir", c.Paths.DataDir, "directory for appended CSV tables")
	fs.IntVar(&c.Analysis.MaxUploadMB, "max-upload-mb", c.Analysis.MaxUploadMB, "largest accepted upload")
	fs.IntVar(&c.Analysis.MaxConcurrent, "max-concurrent", c.Analysis.MaxConcurrent, "simultaneous analyses (0 = unlimited)")
	fs.StringVar(&c.Storage.Backend, "append-backend", c.Storage.Backend, "append log backend (file, postgres)")
	fs.StringVar(&c.Storage.TablesFile, "tables", c.Storage.TablesFile, "YAML whitelist of appendable tables")
	fs.StringVar(&c.Database.URL, "database-url", c.Database.URL, "PostgreSQL connection string")
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&c.Logging.Format, "log-format", c.Logging.Format, "log format (json, console)")
}

// resolvePaths fills the tools and data directories from the root
func (c *Config) resolvePaths() {
	if abs, err := filepath.Abs(c.Paths.RootDir); err == nil {
		c.Paths.RootDir = abs
	}
	if c.Paths.ToolsDir == "" {
		c.Paths.ToolsDir = filepath.Join(c.Paths.RootDir, "lab_dashboard_tools")
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = filepath.Join(c.Paths.RootDir, "data")
	}
}

// Validate checks ranges and backend requirements
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("invalid PORT %q", c.Server.Port))
	}
	if c.Analysis.MaxUploadMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if c.Analysis.MaxConcurrent < 0 {
		return errors.ConfigInvalid("MAX_CONCURRENT_ANALYSES cannot be negative")
	}
	switch c.Storage.Backend {
	case BackendFile:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown APPEND_BACKEND %q", c.Storage.Backend))
	}
	if c.Tables != nil {
		if err := c.Tables.Validate(); err != nil {
			return errors.ConfigInvalid(err.Error())
		}
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the multipart body limit
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Analysis.MaxUploadMB) << 20
}

// tablesFile is the YAML layout of TABLES_FILE:
//
//	tables:
//	  animal_log: [date, mouse_id, notes]
type tablesFile struct {
	Tables map[string][]string `yaml:"tables"`
}

// LoadTables reads a whitelist from a YAML file
func LoadTables(path string) (*tables.Whitelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var tf tablesFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid tables file")
	}
	wl := tables.New(tf.Tables)
	if err := wl.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return wl, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
