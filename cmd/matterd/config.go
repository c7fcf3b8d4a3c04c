package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/caarlos0/env/v11"

	"github.com/daniacca/mattercore/internal/matter"
	"github.com/daniacca/mattercore/internal/matter/sources"
)

// ServerConfig holds the server configuration. Environment variables seed
// the values (with the envDefault fallbacks); command-line flags win.
type ServerConfig struct {
	Addr                string `env:"MATTERD_ADDR" envDefault:":8080"`
	DefaultWorldID      string `env:"MATTERD_WORLD_ID" envDefault:"default"`
	CatalogFile         string `env:"MATTERD_CATALOG_FILE"`
	CatalogDB           string `env:"MATTERD_CATALOG_DB"`
	LogLevel            string `env:"MATTERD_LOG_LEVEL" envDefault:"info"`
	InstantiateOptional bool   `env:"MATTERD_INSTANTIATE_OPTIONAL" envDefault:"false"`
	Seed                int64  `env:"MATTERD_SEED" envDefault:"0"`
	ExprCacheSize       int    `env:"MATTERD_EXPR_CACHE_SIZE" envDefault:"512"`
}

// Options returns the graph options the configuration asks for.
func (c ServerConfig) Options() matter.Options {
	return matter.Options{
		InstantiateOptional: c.InstantiateOptional,
		Seed:                c.Seed,
		ExprCacheSize:       c.ExprCacheSize,
	}
}

// configResolver binds one command-line flag to a configuration field.
type configResolver struct {
	flagName    string
	description string
	setter      func(*ServerConfig, string) error
}

var resolvers = []configResolver{
	{
		flagName:    "addr",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		flagName:    "world-id",
		description: "world created at startup from the catalog file or database",
		setter:      func(c *ServerConfig, v string) error { c.DefaultWorldID = v; return nil },
	},
	{
		flagName:    "catalog-file",
		description: "optional JSON or TOML catalog loaded into the default world",
		setter:      func(c *ServerConfig, v string) error { c.CatalogFile = v; return nil },
	},
	{
		flagName:    "catalog-db",
		description: "optional SQLite catalog database; a catalog file is imported into it when both are set",
		setter:      func(c *ServerConfig, v string) error { c.CatalogDB = v; return nil },
	},
	{
		flagName:    "log-level",
		description: "log level: debug, info, warn, error",
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
	{
		flagName:    "instantiate-optional",
		description: "create optional parts when instantiating types (true/false)",
		setter: func(c *ServerConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("instantiate-optional: %w", err)
			}
			c.InstantiateOptional = b
			return nil
		},
	},
	{
		flagName:    "seed",
		description: "seed for quantity sampling; 0 seeds from the clock",
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			c.Seed = n
			return nil
		},
	},
	{
		flagName:    "expr-cache-size",
		description: "number of compiled expressions kept per world",
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("expr-cache-size: must be a positive integer, got %q", v)
			}
			c.ExprCacheSize = n
			return nil
		},
	},
}

// loadServerConfig resolves configuration from environment variables and
// the given command-line arguments (without the program name).
func loadServerConfig(args []string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("matterd", flag.ContinueOnError)
	flagVars := make(map[string]*string, len(resolvers))
	for _, r := range resolvers {
		flagVars[r.flagName] = fs.String(r.flagName, "", r.description)
	}
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	for _, r := range resolvers {
		v := *flagVars[r.flagName]
		if v == "" {
			continue
		}
		if err := r.setter(&cfg, v); err != nil {
			return ServerConfig{}, err
		}
	}
	return cfg, nil
}

// loadCatalogSource opens the configured catalog. A file alone is served
// from memory; a database is opened (and seeded from the file when both
// are given). It returns a nil source when neither is configured.
func loadCatalogSource(cfg ServerConfig) (matter.Source, func() error, error) {
	noop := func() error { return nil }
	switch {
	case cfg.CatalogDB != "":
		db, err := sources.OpenSQLite(cfg.CatalogDB)
		if err != nil {
			return nil, noop, err
		}
		if cfg.CatalogFile != "" {
			catalog, err := sources.LoadCatalogFile(cfg.CatalogFile)
			if err != nil {
				_ = db.Close()
				return nil, noop, err
			}
			if err := db.Import(context.Background(), catalog); err != nil {
				_ = db.Close()
				return nil, noop, fmt.Errorf("import catalog: %w", err)
			}
		}
		return db, db.Close, nil
	case cfg.CatalogFile != "":
		src, err := sources.NewFileSource(cfg.CatalogFile)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	}
	return nil, noop, nil
}
