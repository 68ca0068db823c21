// Package app provides the constructors Wire assembles into the application.
package app

import (
	"time"

	"pricefeed/internal/canonical"
	"pricefeed/internal/config"
	"pricefeed/internal/fetch"
	"pricefeed/internal/provider"
	"pricefeed/internal/provider/stooq"
	"pricefeed/internal/provider/yahoo"
	"pricefeed/internal/registry"
	"pricefeed/internal/store"
	"pricefeed/internal/update"
)

// ConfigPath locates the configuration file; supplied by the CLI.
type ConfigPath string

// ProvideConfig loads configuration (for Wire).
func ProvideConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

// ProvideRegistry loads the instrument universe (for Wire).
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	return registry.Load(cfg.InstrumentsFile)
}

// ProvideStore opens the raw store (for Wire). The cleanup closes it.
func ProvideStore(cfg *config.Config) (*store.Store, func(), error) {
	st, err := store.Open(cfg.RawDBPath())
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

// ProvideFetchClient builds the fetch client over all known providers (for Wire).
func ProvideFetchClient(cfg *config.Config) *fetch.Client {
	timeout := time.Duration(cfg.Fetch.TimeoutSec) * time.Second
	providers := []provider.Provider{
		stooq.New(timeout),
		yahoo.New(timeout),
	}
	return fetch.NewClient(providers, fetch.Options{
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: time.Duration(cfg.Fetch.InitialBackoffMS) * time.Millisecond,
		RequestsPerSec: cfg.Fetch.RequestsPerSecond,
		Burst:          cfg.Fetch.Burst,
	})
}

// ProvideUpdater assembles the updater (for Wire).
func ProvideUpdater(cfg *config.Config, st *store.Store, fc *fetch.Client, reg *registry.Registry) *update.Updater {
	return update.New(st, fc, reg, cfg.SourcePriority, cfg.Workers, cfg.ReportDir())
}

// ProvideCanonicalizer assembles the canonicalizer (for Wire).
func ProvideCanonicalizer(cfg *config.Config, reg *registry.Registry) *canonical.Canonicalizer {
	return canonical.New(cfg.SourcePriority, reg)
}
