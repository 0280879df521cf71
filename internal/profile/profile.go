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

	"github.com/anastasijaprogramer/chatgpt-clone/internal/version"
)

// Profile is configuration to start main server.
type Profile struct {
	// Gemini backend configuration
	GeminiAPIKey  string // API key sent on every generation request
	GeminiBaseURL string // Base URL of the generative language endpoint
	GeminiModel   string // Model name, e.g. gemini-2.5-flash
	GeminiTimeout int    // Generation request timeout in seconds
	GeminiRPS     int    // Max generation requests per second, 0 means unlimited

	// JWTSecret signs and verifies access tokens.
	JWTSecret string

	// TitleCooldown is the delay in seconds before a conversation title
	// refresh is attempted after the triggering exchange.
	TitleCooldown int

	Mode        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsGenerationEnabled returns true if the Gemini API key is configured.
func (p *Profile) IsGenerationEnabled() bool {
	return p.GeminiAPIKey != ""
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
	p.GeminiAPIKey = getEnvOrDefault("CHATCLONE_GEMINI_API_KEY", "")
	p.GeminiBaseURL = getEnvOrDefault("CHATCLONE_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	p.GeminiModel = getEnvOrDefault("CHATCLONE_GEMINI_MODEL", "gemini-2.5-flash")
	p.GeminiTimeout = getEnvOrDefaultInt("CHATCLONE_GEMINI_TIMEOUT_SECONDS", 60)
	p.GeminiRPS = getEnvOrDefaultInt("CHATCLONE_GEMINI_RPS", 0)

	p.JWTSecret = getEnvOrDefault("CHATCLONE_JWT_SECRET", "")
	p.TitleCooldown = getEnvOrDefaultInt("CHATCLONE_TITLE_COOLDOWN_SECONDS", 2)
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

// checkVersionStamp refuses to run against a data directory last written
// by a binary with a newer minor version. Patch-level downgrades are fine;
// minor versions may change the schema.
func (p *Profile) checkVersionStamp() error {
	minor := version.GetMinorVersion(p.Version)
	if minor == "" {
		return nil
	}

	stampPath := filepath.Join(p.Data, ".version")
	raw, err := os.ReadFile(stampPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read version stamp")
	}
	if err == nil {
		recorded := version.GetMinorVersion(strings.TrimSpace(string(raw)))
		if recorded != "" && !version.IsVersionGreaterOrEqualThan(minor, recorded) {
			return errors.Errorf("data directory %s was last written by version %s, refusing to downgrade to %s", p.Data, recorded, p.Version)
		}
	}
	return errors.Wrap(os.WriteFile(stampPath, []byte(p.Version+"\n"), 0600), "failed to write version stamp")
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "chatclone")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/chatclone"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("chatclone_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if err := p.checkVersionStamp(); err != nil {
		slog.Error("failed to check version stamp", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	if p.Mode == "prod" && p.JWTSecret == "" {
		return errors.New("jwt secret must be configured in prod mode")
	}
	if p.JWTSecret == "" {
		p.JWTSecret = "chatclone-dev-secret"
	}

	if p.GeminiTimeout <= 0 {
		p.GeminiTimeout = 60
	}
	if p.TitleCooldown < 0 {
		p.TitleCooldown = 0
	}

	return nil
}
