// Package config loads the project configuration file: which providers
// to sync, where the catalog lives, and scheduling defaults.
//
// Configuration is YAML (mlsync.yaml by default) with environment
// overrides under the MLSYNC_ prefix, e.g. MLSYNC_STORE_BACKEND=postgres:
//
//	store:
//	  backend: files        # memory | files | postgres
//	  path: ./catalog       # files backend
//	  dsn_env: DATABASE_URL # postgres backend
//
//	schedule:
//	  auto_sync: false
//	  default_interval: 15m
//
//	providers:
//	  - id: metro-mls
//	    name: Metro MLS
//	    family: ridx
//	    base_url: https://ridx.metromls.example.com
//	    enabled: true
//	    rate_limit_per_minute: 60
//	    sync_interval: 15m
//	    credentials:
//	      username_env: METRO_MLS_USERNAME
//	      password_env: METRO_MLS_PASSWORD
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFiles    = "files"
	BackendPostgres = "postgres"
)

// DefaultFileName is the config file searched for when no --config flag
// is given ("mlsync" + a supported extension, e.g. mlsync.yaml).
const DefaultFileName = "mlsync"

// File is the parsed project configuration.
type File struct {
	Store     StoreConfig    `mapstructure:"store" yaml:"store"`
	Schedule  ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Providers []Provider     `mapstructure:"providers" yaml:"providers"`

	// Path is the file the configuration was read from, empty when no
	// file was found and everything came from defaults and environment.
	Path string `mapstructure:"-" yaml:"-"`
}

// StoreConfig selects and parameterizes the catalog store backend.
type StoreConfig struct {
	// Backend is one of memory, files, postgres.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the snapshot directory for the files backend.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// DSN is the connection string for the postgres backend. Prefer
	// DSNEnv so credentials stay out of config files.
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`

	// DSNEnv names an environment variable holding the DSN.
	DSNEnv string `mapstructure:"dsn_env" yaml:"dsn_env,omitempty"`
}

// ResolveDSN returns the postgres connection string, resolving DSNEnv
// when no literal DSN is set.
func (sc StoreConfig) ResolveDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}
	if sc.DSNEnv != "" {
		return os.Getenv(sc.DSNEnv)
	}
	return ""
}

// ScheduleConfig holds scheduler defaults.
type ScheduleConfig struct {
	// AutoSync starts scheduled syncs for every enabled provider on
	// client startup.
	AutoSync bool `mapstructure:"auto_sync" yaml:"auto_sync"`

	// DefaultInterval applies to providers without a sync_interval.
	DefaultInterval time.Duration `mapstructure:"default_interval" yaml:"default_interval,omitempty"`
}

// Provider is the config-file shape of one upstream MLS provider.
type Provider struct {
	ID                 string            `mapstructure:"id" yaml:"id"`
	Name               string            `mapstructure:"name" yaml:"name"`
	Family             string            `mapstructure:"family" yaml:"family"`
	BaseURL            string            `mapstructure:"base_url" yaml:"base_url"`
	Enabled            bool              `mapstructure:"enabled" yaml:"enabled"`
	Credentials        CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	RateLimitPerMinute int               `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute,omitempty"`
	SyncInterval       time.Duration     `mapstructure:"sync_interval" yaml:"sync_interval,omitempty"`
	PageSize           int               `mapstructure:"page_size" yaml:"page_size,omitempty"`
	MaxRetries         int               `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
	QualityFloor       int               `mapstructure:"quality_floor" yaml:"quality_floor,omitempty"`
	ExcludeBelowFloor  bool              `mapstructure:"exclude_below_floor" yaml:"exclude_below_floor,omitempty"`
}

// CredentialsConfig names the environment variables credentials resolve
// from at runtime. Secrets never live in the config file itself.
type CredentialsConfig struct {
	UsernameEnv     string `mapstructure:"username_env" yaml:"username_env,omitempty"`
	PasswordEnv     string `mapstructure:"password_env" yaml:"password_env,omitempty"`
	ClientIDEnv     string `mapstructure:"client_id_env" yaml:"client_id_env,omitempty"`
	ClientSecretEnv string `mapstructure:"client_secret_env" yaml:"client_secret_env,omitempty"`
}

// Load reads the configuration. With an explicit path the file must
// exist; otherwise mlsync.yaml is searched for in the working directory
// and the home directory, and absence is not an error. Environment
// variables override file values under the MLSYNC_ prefix.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetEnvPrefix("MLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.dsn_env", "")
	v.SetDefault("schedule.auto_sync", false)
	v.SetDefault("schedule.default_interval", time.Duration(0))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading "+path, err)
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "reading config file", err)
			}
		}
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return nil, errors.NewConfigError("config", "parsing config file", err)
	}
	file.Path = v.ConfigFileUsed()

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the whole file and collects every problem into one
// error so a bad config can be fixed in a single pass.
func (f *File) Validate() error {
	var problems []string

	switch f.Store.Backend {
	case BackendMemory:
	case BackendFiles:
		if f.Store.Path == "" {
			problems = append(problems, "store: files backend requires store.path (snapshot directory)")
		}
	case BackendPostgres:
		if f.Store.DSN == "" && f.Store.DSNEnv == "" {
			problems = append(problems, "store: postgres backend requires store.dsn or store.dsn_env")
		}
	default:
		problems = append(problems, fmt.Sprintf("store: unknown backend %q (expected memory, files, or postgres)", f.Store.Backend))
	}

	if f.Schedule.DefaultInterval < 0 {
		problems = append(problems, "schedule: default_interval cannot be negative")
	}

	seen := make(map[string]bool, len(f.Providers))
	for i := range f.Providers {
		p := &f.Providers[i]
		label := p.ID
		if label == "" {
			label = fmt.Sprintf("providers[%d]", i)
		}

		if p.ID == "" {
			problems = append(problems, fmt.Sprintf("%s: id is required", label))
		} else if seen[p.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate provider id", label))
		}
		seen[p.ID] = true

		if p.BaseURL == "" {
			problems = append(problems, fmt.Sprintf("%s: base_url is required", label))
		}
		if p.SyncInterval < 0 {
			problems = append(problems, fmt.Sprintf("%s: sync_interval cannot be negative", label))
		}
		if p.RateLimitPerMinute < 0 {
			problems = append(problems, fmt.Sprintf("%s: rate_limit_per_minute cannot be negative", label))
		}
		if p.QualityFloor < 0 || p.QualityFloor > 100 {
			problems = append(problems, fmt.Sprintf("%s: quality_floor must be within [0,100]", label))
		}

		family := listings.Family(p.Family)
		if !family.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: unknown family %q (expected one of %s)", label, p.Family, familyNames()))
			continue
		}
		switch family {
		case listings.FamilyRIDX, listings.FamilyBridge:
			if p.Credentials.UsernameEnv == "" {
				problems = append(problems, fmt.Sprintf("%s: family %s requires credentials.username_env", label, p.Family))
			}
			if p.Credentials.PasswordEnv == "" {
				problems = append(problems, fmt.Sprintf("%s: family %s requires credentials.password_env", label, p.Family))
			}
		case listings.FamilyRESO:
			if p.Credentials.ClientIDEnv == "" {
				problems = append(problems, fmt.Sprintf("%s: family reso requires credentials.client_id_env", label))
			}
			if p.Credentials.ClientSecretEnv == "" {
				problems = append(problems, fmt.Sprintf("%s: family reso requires credentials.client_secret_env", label))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.NewConfigError("config",
		fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - ")), nil)
}

// ProviderConfigs converts the file's provider entries into the domain
// configs the sync pipeline consumes, applying schedule defaults.
func (f *File) ProviderConfigs() []listings.ProviderConfig {
	out := make([]listings.ProviderConfig, 0, len(f.Providers))
	for _, p := range f.Providers {
		interval := p.SyncInterval
		if interval == 0 {
			interval = f.Schedule.DefaultInterval
		}
		out = append(out, listings.ProviderConfig{
			ID:      listings.ProviderID(p.ID),
			Name:    p.Name,
			Family:  listings.Family(p.Family),
			BaseURL: p.BaseURL,
			Enabled: p.Enabled,
			Credentials: listings.Credentials{
				UsernameEnv:     p.Credentials.UsernameEnv,
				PasswordEnv:     p.Credentials.PasswordEnv,
				ClientIDEnv:     p.Credentials.ClientIDEnv,
				ClientSecretEnv: p.Credentials.ClientSecretEnv,
			},
			RateLimitPerMinute: p.RateLimitPerMinute,
			SyncInterval:       interval,
			PageSize:           p.PageSize,
			MaxRetries:         p.MaxRetries,
			QualityFloor:       p.QualityFloor,
			ExcludeBelowFloor:  p.ExcludeBelowFloor,
		})
	}
	return out
}

// Provider returns the domain config for one provider id.
func (f *File) Provider(id string) (listings.ProviderConfig, bool) {
	for _, pc := range f.ProviderConfigs() {
		if string(pc.ID) == id {
			return pc, true
		}
	}
	return listings.ProviderConfig{}, false
}

func familyNames() string {
	families := listings.Families()
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
