package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"required,eq=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type Storage struct {
	ImagesDir  string `yaml:"imagesDir" validate:"required"`
	BatchesDir string `yaml:"batchesDir" validate:"required"`
}

type Sheet struct {
	// BrandingPath points to a PNG or SVG mark; empty disables branding
	BrandingPath string          `yaml:"brandingPath"`
	Commands     []CommandConfig `yaml:"commands"`
}

type Printer struct {
	Command             string `yaml:"command" validate:"required"`
	Destination         string `yaml:"destination"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds" validate:"min=0"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds" validate:"min=0"`
}

type Fetch struct {
	TimeoutSeconds int   `yaml:"timeoutSeconds" validate:"min=0"`
	MaxBytes       int64 `yaml:"maxBytes" validate:"min=0"`
}

type Lock struct {
	Type       string `yaml:"type" validate:"oneof=local redis"`
	RedisAddr  string `yaml:"redisAddr"`
	RedisDB    int    `yaml:"redisDB" validate:"min=0"`
	TTLSeconds int    `yaml:"ttlSeconds" validate:"min=0"`
}

type Mail struct {
	From          string `yaml:"from" validate:"required,email"`
	FromName      string `yaml:"fromName"`
	Subject       string `yaml:"subject" validate:"required"`
	TestRecipient string `yaml:"testRecipient" validate:"omitempty,email"`
}

type Prompt struct {
	Model string `yaml:"model" validate:"required"`
}

// Secrets are read from the environment (or a .env file), never from the YAML file
type Secrets struct {
	SendGridAPIKey string
	GeminiAPIKey   string
	RedisPassword  string
}

type ServiceConfig struct {
	Port     int      `yaml:"port" validate:"min=1,max=65535"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Sheet    Sheet    `yaml:"sheet"`
	Printer  Printer  `yaml:"printer"`
	Fetch    Fetch    `yaml:"fetch"`
	Lock     Lock     `yaml:"lock"`
	Mail     Mail     `yaml:"mail"`
	Prompt   Prompt   `yaml:"prompt"`
	Secrets  Secrets  `yaml:"-"`
}

// DefaultConfig returns the booth defaults used for every field missing in the YAML file
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:     8000,
		Database: Database{Type: "sqlite", ConnectionString: "coalesce.db"},
		Storage:  Storage{ImagesDir: "processed_images", BatchesDir: "processed_batches"},
		Sheet: Sheet{
			Commands: []CommandConfig{
				{Name: "BrandingCommand"},
				{Name: "ThumbnailCommand", Params: map[string]any{"width": 942, "height": 942}},
			},
		},
		Printer: Printer{Command: "lp", TimeoutSeconds: 60},
		Fetch:   Fetch{TimeoutSeconds: 30, MaxBytes: 32 << 20},
		Lock:    Lock{Type: "local", TTLSeconds: 300},
		Mail: Mail{
			From:     "hello@continual.ai",
			FromName: "Continual",
			Subject:  "Your DALL-E 2 image is ready!",
		},
		Prompt: Prompt{Model: "gemini-2.5-flash"},
	}
}

// LoadConfig loads configuration from the specified YAML file on top of DefaultConfig
// and reads secrets from the environment
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	config.Secrets = loadSecrets()
	return config, nil
}

// Validate checks field constraints and the sheet command list
func (c *ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Lock.Type == "redis" && c.Lock.RedisAddr == "" {
		return errors.New("lock.redisAddr is required for the redis lock")
	}
	if err := validateCommands(c.Sheet.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command %q, available: %s", cmd.Name,
				strings.Join(commandstructure.DefaultRegistry.GetRegisteredNames(), ", "))
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

// loadSecrets reads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadSecrets() Secrets {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	return Secrets{
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}
}

func (p Printer) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (p Printer) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

func (f Fetch) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func (l Lock) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}
