package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mindthegap/mindthegap/internal/config"
	"github.com/mindthegap/mindthegap/internal/currency"
	"github.com/mindthegap/mindthegap/internal/reconcile"
	"github.com/mindthegap/mindthegap/internal/service"
	"github.com/mindthegap/mindthegap/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// reconcileConfig reads the reconciliation policy from viper.
func reconcileConfig() (reconcile.Config, error) {
	cfg := reconcile.DefaultConfig()

	threshold, err := decimal.NewFromString(viper.GetString("reconcile.threshold"))
	if err != nil {
		return cfg, fmt.Errorf("invalid reconcile.threshold: %w", err)
	}
	cfg.Threshold = threshold
	cfg.ReportingCurrency = viper.GetString("currency.reporting")

	switch basis := viper.GetString("reconcile.balance_basis"); basis {
	case "savings", "":
		cfg.Basis = reconcile.BasisSavings
	case "all":
		cfg.Basis = reconcile.BasisAll
	default:
		return cfg, fmt.Errorf("invalid reconcile.balance_basis: %s", basis)
	}

	return cfg, nil
}

// initMaintainer builds the estimate maintainer over an initialized store.
func initMaintainer(store service.Storage) (*reconcile.Maintainer, error) {
	cfg, err := reconcileConfig()
	if err != nil {
		return nil, err
	}

	converter := currency.NewConverter(store, viper.GetString("currency.base"))
	return reconcile.NewMaintainer(store, converter, cfg), nil
}
