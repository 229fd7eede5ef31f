// Package config provides configuration loading for loresync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/telemetry"
)

const (
	// EnvPrefix is the prefix viper uses for environment overrides.
	EnvPrefix = "LORESYNC"

	// TokenEnvVar holds the workspace integration token when no file is configured.
	TokenEnvVar = "LORESYNC_NOTION_TOKEN"

	// DatabasePasswordEnvVar holds the database password when no file is configured.
	DatabasePasswordEnvVar = "LORESYNC_DATABASE_PASSWORD"

	defaultBaseURL            = "https://api.notion.com/v1"
	defaultAPIVersion         = "2022-06-28"
	defaultGateRequests       = 3
	defaultGateWindow         = time.Second
	defaultCallTimeout        = 30 * time.Second
	defaultMaxRetries         = 5
	defaultInitialBackoff     = 500 * time.Millisecond
	defaultMaxBackoff         = 30 * time.Second
	defaultMaxCandidatePages  = 20
	defaultMinEmbeddedMatches = 2
	defaultStaleAfter         = 24 * time.Hour
	defaultFileStorageBaseDir = "./data"
)

// defaultTemplateSignatures identify the page the application's template was
// duplicated into.
var defaultTemplateSignatures = []string{"loresync", "story bible", "worldbuilding", "creative workspace"}

// StorageType selects where engine state lives.
type StorageType string

const (
	// StorageTypeFile keeps state in YAML files under FileStorage.BaseDir.
	StorageTypeFile StorageType = "file"

	// StorageTypeDatabase keeps state in PostgreSQL.
	StorageTypeDatabase StorageType = "database"
)

// Option configures the loader.
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath sets the configuration file to load. Symlinks are resolved
// and relative paths must stay inside the working directory.
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config is the root configuration.
type Config struct {
	Workspace   WorkspaceConfig    `yaml:"workspace"`
	Gate        GateConfig         `yaml:"gate"`
	Discovery   DiscoveryConfig    `yaml:"discovery"`
	Sync        SyncConfig         `yaml:"sync"`
	Database    *DatabaseConfig    `yaml:"database,omitempty"`
	FileStorage *FileStorageConfig `yaml:"fileStorage,omitempty"`
	Schedule    *ScheduleConfig    `yaml:"schedule,omitempty"`
	Telemetry   *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// WorkspaceConfig locates the workspace API and its credential.
type WorkspaceConfig struct {
	BaseURL string `yaml:"baseURL,omitempty"`
	Version string `yaml:"version,omitempty"`

	// TokenFile takes precedence over the LORESYNC_NOTION_TOKEN variable.
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// GateConfig tunes the outbound request gate. Durations use Go syntax.
type GateConfig struct {
	Requests       int    `yaml:"requests,omitempty"`
	Window         string `yaml:"window,omitempty"`
	CallTimeout    string `yaml:"callTimeout,omitempty"`
	MaxRetries     *int   `yaml:"maxRetries,omitempty"`
	InitialBackoff string `yaml:"initialBackoff,omitempty"`
	MaxBackoff     string `yaml:"maxBackoff,omitempty"`
}

// DiscoveryConfig tunes template discovery.
type DiscoveryConfig struct {
	TemplateSignatures []string `yaml:"templateSignatures,omitempty"`
	MaxCandidatePages  int      `yaml:"maxCandidatePages,omitempty"`
	MinEmbeddedMatches int      `yaml:"minEmbeddedMatches,omitempty"`
}

// SyncConfig tunes the orchestrator.
type SyncConfig struct {
	StaleAfter   string `yaml:"staleAfter,omitempty"`
	VerifyWrites *bool  `yaml:"verifyWrites,omitempty"`

	// Aliases maps logical database -> source field -> preferred target property.
	// Entries are merged over the built-in alias tables.
	Aliases map[string]map[string]string `yaml:"aliases,omitempty"`

	// Databases limits runs to a subset. Processing order never changes.
	Databases []string `yaml:"databases,omitempty"`
}

// FileStorageConfig configures file-backed state.
type FileStorageConfig struct {
	BaseDir string `yaml:"baseDir,omitempty"`
}

// ScheduleConfig enables periodic runs for a fixed set of users.
type ScheduleConfig struct {
	Interval string   `yaml:"interval"`
	Users    []string `yaml:"users"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// PasswordFile takes precedence over LORESYNC_DATABASE_PASSWORD.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database"`

	// SSLMode defaults to "require".
	SSLMode string `yaml:"sslMode,omitempty"`

	MaxOpenConns    int32  `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns    int32  `yaml:"maxIdleConns,omitempty"`
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// Default returns a configuration with every default applied and file storage.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads, defaults and validates a configuration file.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace.BaseURL == "" {
		c.Workspace.BaseURL = defaultBaseURL
	}
	if c.Workspace.Version == "" {
		c.Workspace.Version = defaultAPIVersion
	}
	if c.Gate.Requests == 0 {
		c.Gate.Requests = defaultGateRequests
	}
	if c.Gate.MaxRetries == nil {
		retries := defaultMaxRetries
		c.Gate.MaxRetries = &retries
	}
	if len(c.Discovery.TemplateSignatures) == 0 {
		c.Discovery.TemplateSignatures = append([]string(nil), defaultTemplateSignatures...)
	}
	if c.Discovery.MaxCandidatePages == 0 {
		c.Discovery.MaxCandidatePages = defaultMaxCandidatePages
	}
	if c.Discovery.MinEmbeddedMatches == 0 {
		c.Discovery.MinEmbeddedMatches = defaultMinEmbeddedMatches
	}
	if c.Sync.VerifyWrites == nil {
		verify := true
		c.Sync.VerifyWrites = &verify
	}
}

// GetStorageType returns database when a database is configured, else file.
func (c *Config) GetStorageType() StorageType {
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeFile
}

// GetFileStorageBaseDir returns the directory for file-backed state.
func (c *Config) GetFileStorageBaseDir() string {
	if c.FileStorage == nil || c.FileStorage.BaseDir == "" {
		return defaultFileStorageBaseDir
	}
	return c.FileStorage.BaseDir
}

// GetToken returns the workspace token using the priority file -> env.
func (w *WorkspaceConfig) GetToken() (string, error) {
	if w.TokenFile != "" {
		data, err := os.ReadFile(filepath.Clean(w.TokenFile))
		if err != nil {
			return "", fmt.Errorf("failed to read token from file %s: %w", w.TokenFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no workspace token configured: set workspace.tokenFile or %s", TokenEnvVar)
}

// GetWindow returns the gate window.
func (g *GateConfig) GetWindow() time.Duration {
	return durationOr(g.Window, defaultGateWindow)
}

// GetCallTimeout returns the per-attempt deadline.
func (g *GateConfig) GetCallTimeout() time.Duration {
	return durationOr(g.CallTimeout, defaultCallTimeout)
}

// GetMaxRetries returns the retry budget after the first attempt.
func (g *GateConfig) GetMaxRetries() int {
	if g.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *g.MaxRetries
}

// GetInitialBackoff returns the first retry delay.
func (g *GateConfig) GetInitialBackoff() time.Duration {
	return durationOr(g.InitialBackoff, defaultInitialBackoff)
}

// GetMaxBackoff returns the retry delay cap.
func (g *GateConfig) GetMaxBackoff() time.Duration {
	return durationOr(g.MaxBackoff, defaultMaxBackoff)
}

// GetStaleAfter returns how old a successful sync may get before it is stale.
func (s *SyncConfig) GetStaleAfter() time.Duration {
	return durationOr(s.StaleAfter, defaultStaleAfter)
}

// ShouldVerifyWrites reports whether created pages are read back.
func (s *SyncConfig) ShouldVerifyWrites() bool {
	return s.VerifyWrites == nil || *s.VerifyWrites
}

// LogicalDatabases returns the configured subset, or nil for all.
func (s *SyncConfig) LogicalDatabases() ([]catalog.LogicalDatabase, error) {
	var out []catalog.LogicalDatabase
	for _, name := range s.Databases {
		db, err := catalog.Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

// AliasOverrides returns the alias overrides keyed by logical database.
func (s *SyncConfig) AliasOverrides() (map[catalog.LogicalDatabase]map[string]string, error) {
	out := make(map[catalog.LogicalDatabase]map[string]string, len(s.Aliases))
	for name, aliases := range s.Aliases {
		db, err := catalog.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("aliases: %w", err)
		}
		out[db] = aliases
	}
	return out, nil
}

// GetInterval returns the scheduling interval.
func (s *ScheduleConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

// UserIDs returns the scheduled users.
func (s *ScheduleConfig) UserIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(s.Users))
	for _, u := range s.Users {
		id, err := uuid.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("schedule.users: %q is not a UUID: %w", u, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetPassword returns the database password using the priority file -> env.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(DatabasePasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnvVar,
	)
}

// GetConnectionString builds a postgres:// URL for pgx and golang-migrate.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, url.QueryEscape(password), d.Host, d.Port, d.Database, sslMode), nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if _, err := url.ParseRequestURI(c.Workspace.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("workspace.baseURL: %w", err))
	}

	errs = append(errs, c.Gate.validate())

	if c.Discovery.MaxCandidatePages < 0 {
		errs = append(errs, fmt.Errorf("discovery.maxCandidatePages must not be negative"))
	}
	if c.Discovery.MinEmbeddedMatches < 1 {
		errs = append(errs, fmt.Errorf("discovery.minEmbeddedMatches must be at least 1"))
	}

	if err := validateDuration("sync.staleAfter", c.Sync.StaleAfter); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Sync.LogicalDatabases(); err != nil {
		errs = append(errs, fmt.Errorf("sync.databases: %w", err))
	}
	if _, err := c.Sync.AliasOverrides(); err != nil {
		errs = append(errs, fmt.Errorf("sync.%w", err))
	}

	if c.Database != nil {
		errs = append(errs, c.Database.validate())
	}

	if c.Schedule != nil {
		errs = append(errs, c.Schedule.validate())
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (g *GateConfig) validate() error {
	var errs []error
	if g.Requests < 1 {
		errs = append(errs, fmt.Errorf("gate.requests must be at least 1"))
	}
	if g.MaxRetries != nil && *g.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("gate.maxRetries must not be negative"))
	}
	for field, value := range map[string]string{
		"gate.window":         g.Window,
		"gate.callTimeout":    g.CallTimeout,
		"gate.initialBackoff": g.InitialBackoff,
		"gate.maxBackoff":     g.MaxBackoff,
	} {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("database.host is required")
	case d.Port == 0:
		return fmt.Errorf("database.port is required")
	case d.User == "":
		return fmt.Errorf("database.user is required")
	case d.Database == "":
		return fmt.Errorf("database.database is required")
	}
	return validateDuration("database.connMaxLifetime", d.ConnMaxLifetime)
}

func (s *ScheduleConfig) validate() error {
	if s.Interval == "" {
		return fmt.Errorf("schedule.interval is required")
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return fmt.Errorf("schedule.interval must be a valid duration (e.g., '30m', '1h'): %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("schedule.interval must be positive")
	}
	if len(s.Users) == 0 {
		return fmt.Errorf("schedule.users must list at least one user")
	}
	_, err = s.UserIDs()
	return err
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
