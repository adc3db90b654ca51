package app

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	defaultEndpoint       = "http://127.0.0.1:5000/api/inventory"
	defaultTimeout        = 10 * time.Second
	defaultProbeTimeout   = 15 * time.Second
	defaultSoftwareLimit  = 20
	defaultSoftwareMarker = " ..."
	defaultListen         = "0.0.0.0:5000"
	defaultMetricsListen  = "0.0.0.0:9090"
	defaultDBPath         = "inventory.db"
	defaultSubjectPrefix  = "inventory.assets"
	defaultConfigFile     = ".inventory.yml"
)

var (
	ErrConfig = errors.New("configuration error")
)

// Configuration holds application configuration read from a YAML or set by env variables.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// AppKind is the application kind - agent / server / client
	AppKind model.AppKind `mapstructure:"app_kind"`

	Log LogOptions `mapstructure:"log"`

	// Agent configures the collector and its transport.
	Agent AgentOptions `mapstructure:"agent"`

	// Server configures the ingest service.
	Server ServerOptions `mapstructure:"server"`
}

// LogOptions configures the app logger.
type LogOptions struct {
	// one of - info, debug, trace
	Level string `mapstructure:"level"`
	// one of - json, text
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	MaxSizeMB    int    `mapstructure:"max_size_mb"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAgeDays   int    `mapstructure:"max_age_days"`
	CompressLogs bool   `mapstructure:"compress"`
}

// AgentOptions configures the collector.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type AgentOptions struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Retries is the number of times a single POST is retried by the HTTP client.
	Retries int `mapstructure:"retries"`
	// Attempts is the number of times the whole collection is run when a send fails with a retryable error.
	Attempts       int           `mapstructure:"attempts"`
	Hostname       string        `mapstructure:"hostname"`
	Placeholder    string        `mapstructure:"placeholder"`
	NotApplicable  string        `mapstructure:"not_applicable"`
	SoftwareLimit  int           `mapstructure:"software_limit"`
	SoftwareMarker string        `mapstructure:"software_marker"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	OAuth          OAuthOptions  `mapstructure:"oauth"`
}

// OAuthOptions configures the client credentials flow used by the agent and operator commands.
type OAuthOptions struct {
	Enabled          bool     `mapstructure:"enabled"`
	IssuerEndpoint   string   `mapstructure:"issuer_endpoint"`
	AudienceEndpoint string   `mapstructure:"audience_endpoint"`
	ClientID         string   `mapstructure:"client_id"`
	ClientSecret     string   `mapstructure:"client_secret"`
	Scopes           []string `mapstructure:"scopes"`
}

// ServerOptions configures the ingest service.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type ServerOptions struct {
	Listen    string          `mapstructure:"listen"`
	StoreKind model.StoreKind `mapstructure:"store"`
	DBPath    string          `mapstructure:"db_path"`
	// TerminalDecommissioned rejects any status change of a decommissioned asset.
	TerminalDecommissioned bool        `mapstructure:"terminal_decommissioned"`
	MetricsListen          string      `mapstructure:"metrics_listen"`
	Nats                   NatsOptions `mapstructure:"nats"`
	OIDC                   OIDCOptions `mapstructure:"oidc"`
}

// NatsOptions configures the asset event publisher, events are disabled when URL is empty.
type NatsOptions struct {
	URL            string        `mapstructure:"url"`
	CredsFile      string        `mapstructure:"creds_file"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// OIDCOptions configures bearer token verification on the server API.
type OIDCOptions struct {
	Enabled        bool   `mapstructure:"enabled"`
	IssuerEndpoint string `mapstructure:"issuer_endpoint"`
	Audience       string `mapstructure:"audience"`
}

// LoadConfiguration loads application configuration
//
// Reads in the cfgFile when available and overrides from environment variables.
func (a *App) LoadConfiguration(cfgFile string) error {
	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix(model.AppName)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	a.setDefaults()

	if cfgFile == "" {
		cfgFile = homeConfigFile()
	}

	if cfgFile != "" {
		fh, err := os.Open(cfgFile)
		if err != nil {
			return errors.Wrap(ErrConfig, err.Error())
		}
		defer fh.Close()

		if err = a.v.ReadConfig(fh); err != nil {
			return errors.Wrap(ErrConfig, "ReadConfig error:"+err.Error())
		}
	}

	if err := a.envBindVars(); err != nil {
		return errors.Wrap(ErrConfig, "env var bind error:"+err.Error())
	}

	if err := a.v.Unmarshal(a.Config); err != nil {
		return errors.Wrap(ErrConfig, "Unmarshal error: "+err.Error())
	}

	return a.validate()
}

func (a *App) setDefaults() {
	a.v.SetDefault("log.level", "info")
	a.v.SetDefault("log.format", "json")
	a.v.SetDefault("log.max_size_mb", 100)
	a.v.SetDefault("log.max_backups", 3)
	a.v.SetDefault("log.max_age_days", 28)

	a.v.SetDefault("agent.endpoint", defaultEndpoint)
	a.v.SetDefault("agent.timeout", defaultTimeout)
	a.v.SetDefault("agent.retries", 0)
	a.v.SetDefault("agent.attempts", 1)
	a.v.SetDefault("agent.placeholder", model.DefaultPlaceholder)
	a.v.SetDefault("agent.not_applicable", model.DefaultNotApplicable)
	a.v.SetDefault("agent.software_limit", defaultSoftwareLimit)
	a.v.SetDefault("agent.software_marker", defaultSoftwareMarker)
	a.v.SetDefault("agent.probe_timeout", defaultProbeTimeout)

	a.v.SetDefault("server.listen", defaultListen)
	a.v.SetDefault("server.store", string(model.StoreKindSQLite))
	a.v.SetDefault("server.db_path", defaultDBPath)
	a.v.SetDefault("server.terminal_decommissioned", false)
	a.v.SetDefault("server.metrics_listen", defaultMetricsListen)
	a.v.SetDefault("server.nats.subject_prefix", defaultSubjectPrefix)
	a.v.SetDefault("server.nats.connect_timeout", defaultTimeout)
}

// homeConfigFile returns $HOME/.inventory.yml when it exists.
func homeConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	f := filepath.Join(home, defaultConfigFile)
	if _, err := os.Stat(f); err != nil {
		return ""
	}

	return f
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (a *App) envBindVars() error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(a.Config, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	for k := range flat {
		if err := a.v.BindEnv(k); err != nil {
			return errors.Wrap(ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}

// nolint:gocyclo // parameter validation is cyclomatic
func (a *App) validate() error {
	switch a.Config.AppKind {
	case model.AppKindAgent, model.AppKindClient:
		if _, err := url.ParseRequestURI(a.Config.Agent.Endpoint); err != nil {
			return errors.Wrap(ErrConfig, "agent.endpoint: "+err.Error())
		}

		if a.Config.Agent.Timeout <= 0 {
			return errors.Wrap(ErrConfig, "agent.timeout must be positive")
		}

		if a.Config.Agent.Retries < 0 {
			return errors.Wrap(ErrConfig, "agent.retries must not be negative")
		}

		if a.Config.Agent.Attempts < 1 {
			a.Config.Agent.Attempts = 1
		}

		if a.Config.Agent.SoftwareLimit < 1 {
			return errors.Wrap(ErrConfig, "agent.software_limit must be positive")
		}

		if a.Config.Agent.OAuth.Enabled {
			o := a.Config.Agent.OAuth
			if o.IssuerEndpoint == "" || o.ClientID == "" || o.ClientSecret == "" {
				return errors.Wrap(ErrConfig, "agent.oauth requires issuer_endpoint, client_id and client_secret")
			}
		}
	case model.AppKindServer:
		if a.Config.Server.Listen == "" {
			return errors.Wrap(ErrConfig, "server.listen not defined")
		}

		switch a.Config.Server.StoreKind {
		case model.StoreKindSQLite:
			if a.Config.Server.DBPath == "" {
				return errors.Wrap(ErrConfig, "server.db_path not defined")
			}
		case model.StoreKindMemory:
		default:
			return errors.Wrap(ErrConfig, "unsupported server.store: "+string(a.Config.Server.StoreKind))
		}

		if a.Config.Server.OIDC.Enabled && a.Config.Server.OIDC.IssuerEndpoint == "" {
			return errors.Wrap(ErrConfig, "server.oidc.issuer_endpoint not defined")
		}
	}

	return nil
}
