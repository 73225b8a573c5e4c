// Package config reads the service configuration from defaults, an optional config file,
// environment variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/logging"
)

// Configuration keys. Flags are bound to the same keys.
const (
	KeyConfigFile   = "config"
	KeyPort         = "port"
	KeyGinLogging   = "gin_logging"
	KeyStoreDriver  = "store.driver"
	KeyDBHost       = "db.host"
	KeyDBUser       = "db.user"
	KeyDBPassword   = "db.password"
	KeyDBName       = "db.name"
	KeySQLitePath   = "sqlite.path"
	KeyAuthSecret   = "auth.secret"
	KeyAuthIssuer   = "auth.issuer"
	KeyLogLevel     = "logging.level"
	KeyLogFormat    = "logging.format"
	KeyLogFile      = "logging.file"
	KeyServiceURL   = "service.url"
	KeyTokenSubject = "auth.subject"
)

// environment lists the environment variable read for each key.
var environment = map[string]string{
	KeyConfigFile:   "CONFIG",
	KeyPort:         "PORT",
	KeyGinLogging:   "GIN_LOGGING",
	KeyStoreDriver:  "STORE_DRIVER",
	KeyDBHost:       "DBHOST",
	KeyDBUser:       "DBUSER",
	KeyDBPassword:   "DBPWD",
	KeyDBName:       "DBNAME",
	KeySQLitePath:   "SQLITE_PATH",
	KeyAuthSecret:   "AUTH_SECRET",
	KeyAuthIssuer:   "AUTH_ISSUER",
	KeyLogLevel:     "LOG_LEVEL",
	KeyLogFormat:    "LOG_FORMAT",
	KeyLogFile:      "LOG_FILE",
	KeyServiceURL:   "SERVICE_URL",
	KeyTokenSubject: "AUTH_SUBJECT",
}

// Config is the resolved configuration of the service.
type Config struct {
	Port       int
	GinLogging bool
	Store      docstore.Options
	Auth       Auth
	Log        logging.Options
	ServiceURL string
}

// Auth holds the parameters for verifying and issuing bearer tokens.
type Auth struct {
	Secret  string
	Issuer  string
	Subject string
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyGinLogging, "on")
	v.SetDefault(KeyStoreDriver, docstore.DriverMySQL)
	v.SetDefault(KeyDBHost, "localhost:3306")
	v.SetDefault(KeyDBName, "test")
	v.SetDefault(KeyAuthIssuer, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatConsole)
	v.SetDefault(KeyServiceURL, "http://localhost:8080")
	v.SetDefault(KeyTokenSubject, "load-client")
	for key, env := range environment {
		// BindEnv only fails without arguments.
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads the config file named by the config key, if any, and resolves the
// configuration.
func Load(v *viper.Viper) (Config, error) {
	if file := strings.TrimSpace(v.GetString(KeyConfigFile)); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config file %s: %w", file, err)
		}
	}
	cfg := Config{
		Port:       v.GetInt(KeyPort),
		GinLogging: !strings.EqualFold(v.GetString(KeyGinLogging), "off"),
		Store: docstore.Options{
			Driver:   strings.ToLower(strings.TrimSpace(v.GetString(KeyStoreDriver))),
			Host:     v.GetString(KeyDBHost),
			User:     v.GetString(KeyDBUser),
			Password: v.GetString(KeyDBPassword),
			Database: v.GetString(KeyDBName),
			Path:     v.GetString(KeySQLitePath),
		},
		Auth: Auth{
			Secret:  v.GetString(KeyAuthSecret),
			Issuer:  v.GetString(KeyAuthIssuer),
			Subject: v.GetString(KeyTokenSubject),
		},
		Log: logging.Options{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
			Path:   v.GetString(KeyLogFile),
		},
		ServiceURL: strings.TrimRight(v.GetString(KeyServiceURL), "/"),
	}
	return cfg, nil
}

// ValidateStore checks the store settings.
func (c Config) ValidateStore() error {
	switch c.Store.Driver {
	case docstore.DriverMySQL:
		if c.Store.Host == "" || c.Store.User == "" {
			return errors.New("the mysql store needs DBHOST and DBUSER")
		}
	case docstore.DriverSQLite, docstore.DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// ValidateServer checks everything the HTTP service needs.
func (c Config) ValidateServer() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("AUTH_SECRET must be set")
	}
	return c.ValidateStore()
}

// AddFlags registers the flags shared by all binaries on the command and binds them to v.
func AddFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file path (optional).")
	flags.String("log-level", "", "Logging level: debug|info|warn|error.")
	flags.String("log-format", "", "Logging format: console|json.")
	flags.String("log-file", "", "Append logs to this file instead of stderr.")
	flags.String("store", "", "Document store: mysql|sqlite|memory.")
	flags.String("sqlite-path", "", "SQLite database file; empty for a private in-memory database.")
	BindFlag(v, KeyConfigFile, cmd, "config")
	BindFlag(v, KeyLogLevel, cmd, "log-level")
	BindFlag(v, KeyLogFormat, cmd, "log-format")
	BindFlag(v, KeyLogFile, cmd, "log-file")
	BindFlag(v, KeyStoreDriver, cmd, "store")
	BindFlag(v, KeySQLitePath, cmd, "sqlite-path")
}

// BindFlag binds a flag of the command, local or persistent, to the key.
func BindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	// BindPFlag only fails for a nil flag.
	_ = v.BindPFlag(key, flag)
}
