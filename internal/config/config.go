package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Version    string   `json:"version" mapstructure:"version"`
	PageSize   int      `json:"page_size" mapstructure:"page_size"`
	ExportPath string   `json:"export_path" mapstructure:"export_path"`
	Database   Database `json:"database" mapstructure:"database"`
	Server     Server   `json:"server" mapstructure:"server"`
	Admin      Admin    `json:"admin" mapstructure:"admin"`
	Auth       Auth     `json:"auth" mapstructure:"auth"`
	Schema     Schema   `json:"schema" mapstructure:"schema"`
	Log        Log      `json:"log" mapstructure:"log"`
}

type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
}

type Server struct {
	Port        int    `json:"port" mapstructure:"port"`
	UploadsPath string `json:"uploads_path" mapstructure:"uploads_path"`
	PublicURL   string `json:"public_url" mapstructure:"public_url"` // prefix for uploaded file URLs
	MaxUploadMB int    `json:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// Admin names the environment variable holding the owner identity. The owner
// email is never stored in the config file itself.
type Admin struct {
	OwnerEmailEnv     string `json:"owner_email_env" mapstructure:"owner_email_env"`
	SessionTTLMinutes int    `json:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
	MaxSessions       int    `json:"max_sessions" mapstructure:"max_sessions"`
}

type Auth struct {
	UsersServiceURL string `json:"users_service_url" mapstructure:"users_service_url"`
	CookieName      string `json:"cookie_name" mapstructure:"cookie_name"`
	LoginURL        string `json:"login_url" mapstructure:"login_url"`
}

type Schema struct {
	Dir string `json:"dir,omitempty" mapstructure:"dir"` // optional override directory for descriptors
}

type Log struct {
	Level string `json:"level" mapstructure:"level"`
	JSON  bool   `json:"json" mapstructure:"json"`
}

var supportedProviders = []string{"sqlite", "sqlite3", "postgresql", "postgres", "mysql"}

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied and nothing read
// from viper.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.PageSize == 0 {
		c.PageSize = 50
	}
	if c.ExportPath == "" {
		c.ExportPath = "db/export"
	}
	if c.Database.Provider == "" {
		c.Database.Provider = "sqlite"
	}
	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8787
	}
	if c.Server.UploadsPath == "" {
		c.Server.UploadsPath = "uploads"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "/uploads"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 10
	}
	if c.Admin.OwnerEmailEnv == "" {
		c.Admin.OwnerEmailEnv = "USER_EMAIL"
	}
	if c.Admin.SessionTTLMinutes == 0 {
		c.Admin.SessionTTLMinutes = 12 * 60
	}
	if c.Admin.MaxSessions == 0 {
		c.Admin.MaxSessions = 1024
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "session_token"
	}
	if c.Auth.LoginURL == "" {
		c.Auth.LoginURL = "/login"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) GetOwnerEmail() (string, error) {
	email := strings.TrimSpace(os.Getenv(c.Admin.OwnerEmailEnv))
	if email == "" {
		return "", fmt.Errorf("owner email not found in environment variable %s", c.Admin.OwnerEmailEnv)
	}
	return email, nil
}

func (c *Config) Validate() error {
	supported := false
	for _, provider := range supportedProviders {
		if c.Database.Provider == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}

	if c.Server.UploadsPath == "" {
		return fmt.Errorf("server.uploads_path cannot be empty")
	}

	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}

	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Server.UploadsPath,
		c.ExportPath,
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
