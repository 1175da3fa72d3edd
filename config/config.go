// Package config loads the soundcheck configuration: compiled-in defaults,
// overlaid by an optional yaml file, overlaid by SOUNDCHECK_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	DB        DB        `koanf:"db"`
	Server    Server    `koanf:"server"`
	Logging   Logging   `koanf:"logging"`
	Ticketing Ticketing `koanf:"ticketing"`
	Catalog   Catalog   `koanf:"catalog"`
	Sync      Sync      `koanf:"sync"`
	Voting    Voting    `koanf:"voting"`
	Auth      Auth      `koanf:"auth"`
	Cache     Cache     `koanf:"cache"`
}

type DB struct {
	Path string `koanf:"path"`
}

type Server struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Ticketing struct {
	APIKey string `koanf:"api_key"`
}

type Catalog struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type Sync struct {
	// ArtistTTL and ShowTTL are the freshness windows: records older than
	// this are refetched from the ticketing source on read.
	ArtistTTL time.Duration `koanf:"artist_ttl"`
	ShowTTL   time.Duration `koanf:"show_ttl"`

	// TaskBuffer bounds the background population queue; TaskTimeout bounds
	// each queued task's run.
	TaskBuffer  int           `koanf:"task_buffer"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

type Voting struct {
	// AnonymousQuota is the number of votes an anonymous session may cast
	// per show within the quota window.
	AnonymousQuota int           `koanf:"anonymous_quota"`
	QuotaDir       string        `koanf:"quota_dir"`
	QuotaTTL       time.Duration `koanf:"quota_ttl"`
}

type Auth struct {
	// JWTSecret verifies bearer tokens minted by the login service. When
	// empty, every request is treated as anonymous.
	JWTSecret string `koanf:"jwt_secret"`
	LoginURL  string `koanf:"login_url"`
}

type Cache struct {
	// Dir holds the on-disk readthrough cache used by the taxonomy import.
	Dir string `koanf:"dir"`
}

func Default() *Config {
	return &Config{
		DB:      DB{Path: "soundcheck.db"},
		Server:  Server{Addr: ":4242", ShutdownTimeout: 10 * time.Second},
		Logging: Logging{Level: "info", Format: "console"},
		Sync: Sync{
			ArtistTTL:   7 * 24 * time.Hour,
			ShowTTL:     24 * time.Hour,
			TaskBuffer:  64,
			TaskTimeout: time.Minute,
		},
		Voting: Voting{AnonymousQuota: 3, QuotaDir: "quota", QuotaTTL: 48 * time.Hour},
		Auth:   Auth{LoginURL: "/login"},
		Cache:  Cache{Dir: "cache"},
	}
}

// Load reads configuration from the given yaml file. When path is empty the
// default locations are tried and silently skipped if absent; an explicit
// path that can't be read is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error loading config file '%s': %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("SOUNDCHECK_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Voting.AnonymousQuota < 1 {
		return nil, fmt.Errorf("voting.anonymous_quota must be at least 1, got %d", cfg.Voting.AnonymousQuota)
	}
	return &cfg, nil
}

func findFile() string {
	for _, candidate := range []string{"soundcheck.yaml", "soundcheck.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// envKey maps SOUNDCHECK_SERVER_ADDR to "server.addr". Keys whose leaf
// contains an underscore are ambiguous under that rule and are listed
// explicitly.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "SOUNDCHECK_"))
	if path, ok := envAliases[s]; ok {
		return path
	}
	return strings.ReplaceAll(s, "_", ".")
}

var envAliases = map[string]string{
	"server_shutdown_timeout": "server.shutdown_timeout",
	"ticketing_api_key":       "ticketing.api_key",
	"catalog_client_id":       "catalog.client_id",
	"catalog_client_secret":   "catalog.client_secret",
	"sync_artist_ttl":         "sync.artist_ttl",
	"sync_show_ttl":           "sync.show_ttl",
	"sync_task_buffer":        "sync.task_buffer",
	"sync_task_timeout":       "sync.task_timeout",
	"voting_anonymous_quota":  "voting.anonymous_quota",
	"voting_quota_dir":        "voting.quota_dir",
	"voting_quota_ttl":        "voting.quota_ttl",
	"auth_jwt_secret":         "auth.jwt_secret",
	"auth_login_url":          "auth.login_url",
}
