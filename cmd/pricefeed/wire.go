//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"pricefeed/internal/app"
	"pricefeed/internal/canonical"
	"pricefeed/internal/config"
	"pricefeed/internal/registry"
	"pricefeed/internal/store"
	"pricefeed/internal/update"
)

// App holds application dependencies built by Wire.
type App struct {
	Config        *config.Config
	Registry      *registry.Registry
	Store         *store.Store
	Updater       *update.Updater
	Canonicalizer *canonical.Canonicalizer
}

// InitializeApp builds App via Wire. The returned cleanup closes the raw
// store and must be called when done.
func InitializeApp(path app.ConfigPath) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideRegistry,
		app.ProvideStore,
		app.ProvideFetchClient,
		app.ProvideUpdater,
		app.ProvideCanonicalizer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
