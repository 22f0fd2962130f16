package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "ideaflow.yml"

// Config models ideaflow.yml.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		BasePath     string        `yaml:"base_path"`
		CORSOrigins  []string      `yaml:"cors_origins"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret    string        `yaml:"jwt_secret"`
		AccessTTL    time.Duration `yaml:"access_ttl"`
		SessionStore string        `yaml:"session_store"`
		RedisURL     string        `yaml:"redis_url"`
	} `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Uploads struct {
		MaxBytes     int64    `yaml:"max_bytes"`
		AllowedTypes []string `yaml:"allowed_types"`
	} `yaml:"uploads"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	Root          string `yaml:"root"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	Minio         struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.AccessTTL <= 0 {
		return fmt.Errorf("config.auth.access_ttl must be positive")
	}
	switch c.Auth.SessionStore {
	case "memory":
	case "redis":
		if c.Auth.RedisURL == "" {
			return fmt.Errorf("config.auth.redis_url is required for session_store=redis")
		}
	default:
		return fmt.Errorf("config.auth.session_store must be 'memory' or 'redis'")
	}
	switch c.Storage.Driver {
	case "fs":
		if c.Storage.Root == "" {
			return fmt.Errorf("config.storage.root is required for driver=fs")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("config.storage.minio.endpoint is required for driver=minio")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config.storage.bucket is required for driver=minio")
		}
	default:
		return fmt.Errorf("config.storage.driver must be 'fs' or 'minio'")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("config.uploads.max_bytes must be positive")
	}
	if len(c.Uploads.AllowedTypes) == 0 {
		return fmt.Errorf("config.uploads.allowed_types is required")
	}
	for _, t := range c.Uploads.AllowedTypes {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("config.uploads.allowed_types has empty entry")
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be 'text' or 'json'")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads config from the workspace, falling back to defaults when the file is absent.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// IsAllowedType reports whether the MIME type may be uploaded.
func (c *Config) IsAllowedType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, t := range c.Uploads.AllowedTypes {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1
  cors_origins: ["*"]
  read_timeout: 30s
  write_timeout: 60s

auth:
  jwt_secret: ""
  access_ttl: 12h
  session_store: memory
  redis_url: redis://localhost:6379/0

storage:
  driver: fs
  root: .ideaflow/objects
  bucket: anexos-ideias
  public_base_url: ""
  minio:
    endpoint: ""
    access_key: ""
    secret_key: ""
    region: ""
    use_ssl: false

uploads:
  max_bytes: 10485760
  allowed_types:
    - image/jpeg
    - image/png
    - image/gif
    - application/pdf
    - application/msword
    - application/vnd.openxmlformats-officedocument.wordprocessingml.document
    - application/vnd.ms-excel
    - application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
    - text/plain
    - text/csv

log:
  level: info
  format: text
`
