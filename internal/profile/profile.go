package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the gateway server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for the HTTP server.
	Addr string
	// Port is the binding port for the HTTP server.
	Port int
	// Data is the data directory (sqlite database files live here).
	Data string
	// Driver is the database driver: sqlite, postgres.
	Driver string
	// DSN is the database source name.
	DSN string
	// Version is the current gateway version.
	Version string

	// CopilotHost and CopilotPort locate the AI backend that actually
	// executes questions.
	CopilotHost string
	CopilotPort int

	// Language is the base module language used by the labels endpoint.
	Language string

	// Title generation LLM configuration (OpenAI-compatible protocol).
	TitleLLMAPIKey  string
	TitleLLMBaseURL string
	TitleLLMModel   string
	// TitleLLMTimeout is the title request timeout in seconds.
	TitleLLMTimeout int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsTitleLLMEnabled returns true when a title-generation API key is configured.
func (p *Profile) IsTitleLLMEnabled() bool {
	return p.TitleLLMAPIKey != ""
}

// CopilotBaseURL returns the base URL of the AI backend.
func (p *Profile) CopilotBaseURL() string {
	return fmt.Sprintf("http://%s:%d", p.CopilotHost, p.CopilotPort)
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.CopilotHost = getEnvOrDefault("COPILOT_HOST", "localhost")
	p.CopilotPort = getEnvOrDefaultInt("COPILOT_PORT", 5005)
	p.Language = getEnvOrDefault("COPILOT_LANGUAGE", "en_US")

	p.TitleLLMAPIKey = getEnvOrDefault("COPILOT_TITLE_LLM_API_KEY", "")
	p.TitleLLMBaseURL = getEnvOrDefault("COPILOT_TITLE_LLM_BASE_URL", "https://api.openai.com/v1")
	p.TitleLLMModel = getEnvOrDefault("COPILOT_TITLE_LLM_MODEL", "gpt-4o-mini")
	p.TitleLLMTimeout = getEnvOrDefaultInt("COPILOT_TITLE_LLM_TIMEOUT_SECONDS", 15)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "copilot-gateway")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/copilot-gateway"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("copilot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.CopilotHost == "" {
		p.CopilotHost = "localhost"
	}
	if p.CopilotPort == 0 {
		p.CopilotPort = 5005
	}
	if p.Language == "" {
		p.Language = "en_US"
	}

	return nil
}
