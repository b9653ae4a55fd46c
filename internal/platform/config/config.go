package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreRemote = "remote"
)

type Config struct {
	DataDir      string
	DBPath       string
	CatalogPath  string
	JournalDir   string
	Store        string
	StoreURL     string
	Token        string
	JWTSecret    string
	Location     *time.Location
	WriteTimeout time.Duration
	TickInterval time.Duration
	Listen       string
	LogLevel     string
	LogFormat    string
}

// SetDefaults registers defaults on v. Flags bound later override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data-dir", defaultDataDir())
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("store-url", "http://127.0.0.1:8787")
	v.SetDefault("timezone", "Local")
	v.SetDefault("write-timeout", 10*time.Second)
	v.SetDefault("tick-interval", time.Second)
	v.SetDefault("listen", "127.0.0.1:8787")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// Load reads a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	dataDir := strings.TrimSpace(v.GetString("data-dir"))
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	dbPath := v.GetString("db-path")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "mindmosaic.db")
	}
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("load timezone: %w", err)
	}
	cfg := Config{
		DataDir:      dataDir,
		DBPath:       dbPath,
		CatalogPath:  v.GetString("catalog"),
		JournalDir:   v.GetString("journal-dir"),
		Store:        strings.ToLower(v.GetString("store")),
		StoreURL:     strings.TrimRight(v.GetString("store-url"), "/"),
		Token:        v.GetString("token"),
		JWTSecret:    v.GetString("jwt-secret"),
		Location:     loc,
		WriteTimeout: v.GetDuration("write-timeout"),
		TickInterval: v.GetDuration("tick-interval"),
		Listen:       v.GetString("listen"),
		LogLevel:     v.GetString("log-level"),
		LogFormat:    v.GetString("log-format"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
	case StoreRemote:
		if c.StoreURL == "" {
			return fmt.Errorf("store-url is required for the remote store")
		}
	default:
		return fmt.Errorf("unsupported store %q", c.Store)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write-timeout must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick-interval must be positive")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mindmosaic"
	}
	return filepath.Join(home, ".mindmosaic")
}
