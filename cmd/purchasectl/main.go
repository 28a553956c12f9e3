package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/reconciler/internal/app"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/app/service/statistics"
	"github.com/fatflowers/reconciler/pkg/types"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "purchasectl",
		Short:         "Operate on purchases outside the HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newReconcileCommand(), newHistoryCommand(), newStatsCommand())
	return cmd
}

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <purchase-id>",
		Short: "Re-validate a purchase with its store and apply the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *purchase.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				p, outcome, err := svc.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"outcome": outcome, "purchase": p})
			}, &svc)
		},
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <purchase-id>",
		Short: "Print the ledger of a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *purchase.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				rows, err := svc.HistoryOf(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, rows)
			}, &svc)
		},
	}
}

func newStatsCommand() *cobra.Command {
	var (
		items     []string
		providers []string
		products  []string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print purchase statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &statistics.Request{}
			for _, id := range items {
				req.DataItems = append(req.DataItems, &statistics.DataItem{ID: statistics.StatisticType(id)})
			}
			if len(providers) > 0 {
				req.Filters = append(req.Filters, &types.CommonFilter{Field: "provider_id", Operator: types.CommonFilterOperatorIn, Values: lo.ToAnySlice(providers)})
			}
			if len(products) > 0 {
				req.Filters = append(req.Filters, &types.CommonFilter{Field: "product_id", Operator: types.CommonFilterOperatorIn, Values: lo.ToAnySlice(products)})
			}
			var svc *statistics.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				res, err := svc.Get(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}, &svc)
		},
	}
	cmd.Flags().StringSliceVar(&items, "item", []string{
		string(statistics.StatisticTypeStatusCount),
		string(statistics.StatisticTypeProviderCount),
		string(statistics.StatisticTypeTransactionTotal),
	}, "statistic to compute, repeatable")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "only count purchases from these stores")
	cmd.Flags().StringSliceVar(&products, "product", nil, "only count these products")
	return cmd
}

// withApp starts the core graph, fills targets, runs fn and stops the graph.
func withApp(ctx context.Context, fn func(context.Context) error, targets ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a := fx.New(app.CoreModule, fx.NopLogger, fx.Populate(targets...))
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
