package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/reconcile"
	"github.com/mindthegap/mindthegap/internal/service"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile periods and maintain estimated transactions",
		Long: `Iterate users and periods, compute the implied missing income or expense
for each, and create, replace or delete the synthetic estimated transaction
so the ledger matches the reported balances.

One failing (user, period) pair never aborts the rest of the run.`,
		RunE: runReconcile,
	}

	cmd.Flags().String("user", "", "reconcile a single user")
	cmd.Flags().String("period", "", `reconcile a single period by label, e.g. "March 2024"`)
	cmd.Flags().Bool("dry-run", false, "report what would change without mutating the ledger")

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userFilter, _ := cmd.Flags().GetString("user")
	periodFilter, _ := cmd.Flags().GetString("period")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	maintainer, err := initMaintainer(store)
	if err != nil {
		return err
	}

	users, err := resolveUsers(ctx, store, userFilter)
	if err != nil {
		return err
	}
	periods, err := resolvePeriods(ctx, store, periodFilter)
	if err != nil {
		return err
	}

	if len(users) == 0 || len(periods) == 0 {
		slog.Info("Nothing to reconcile", "users", len(users), "periods", len(periods))
		return nil
	}

	bar := progressbar.Default(int64(len(users)*len(periods)), "reconciling")

	var applied, balanced, failed int
	for _, userID := range users {
		for i := range periods {
			period := &periods[i]
			if err := reconcileOne(ctx, maintainer, userID, period, dryRun, &applied, &balanced); err != nil {
				failed++
				common.LogError(err, "reconciliation failed", common.Fields{
					"user":   userID,
					"period": period.Label,
				})
			}
			_ = bar.Add(1)
		}
	}

	slog.Info("Reconciliation run complete",
		"applied", applied,
		"balanced", balanced,
		"failed", failed,
		"dry_run", dryRun)

	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(users)*len(periods))
	}
	return nil
}

func reconcileOne(ctx context.Context, maintainer *reconcile.Maintainer, userID string, period *model.Period, dryRun bool, applied, balanced *int) error {
	if dryRun {
		summary := maintainer.Preview(ctx, userID, period)
		switch summary.Status {
		case model.StatusError:
			return fmt.Errorf("preview: %s", summary.Message)
		case model.StatusBalanced:
			*balanced++
		default:
			*applied++
			slog.Info("Would apply estimate",
				"user", userID,
				"period", period.Label,
				"type", summary.EstimatedType,
				"amount", summary.EstimatedAmount.Round(2).String())
		}
		return nil
	}

	var txn *model.Transaction
	err := common.WithRetry(ctx, func() error {
		var applyErr error
		txn, applyErr = maintainer.Apply(ctx, userID, period)
		return applyErr
	}, common.RetryOptions{MaxAttempts: 2})
	if err != nil {
		return err
	}

	if txn != nil {
		*applied++
	} else {
		*balanced++
	}
	return nil
}

func resolveUsers(ctx context.Context, store service.Storage, filter string) ([]string, error) {
	if filter != "" {
		return []string{filter}, nil
	}
	return store.ListUserIDs(ctx)
}

func resolvePeriods(ctx context.Context, store service.Storage, filter string) ([]model.Period, error) {
	if filter != "" {
		period, err := store.GetPeriodByLabel(ctx, filter)
		if err != nil {
			return nil, err
		}
		if period == nil {
			return nil, fmt.Errorf("%w: %s", common.ErrPeriodNotFound, filter)
		}
		return []model.Period{*period}, nil
	}
	return store.ListPeriods(ctx)
}
