package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"superstore/internal/analytics"
	"superstore/internal/cli"
	"superstore/internal/core"
	apphttp "superstore/internal/http"
	applog "superstore/internal/log"
	"superstore/internal/services"
)

type viewFlags struct {
	regions     []string
	categories  []string
	years       []string
	discountMin float64
	discountMax float64
}

func (a *app) viewsCmd() *cobra.Command {
	var fl viewFlags
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Compute the dashboard views for a filter and print them as JSON",
		Example: `  superstore views --region West --region East --year 2016
  superstore views --category Furniture --discount-max 0.2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ds, err := cli.LoadDataset(ctx, a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			f := fl.filters(a.logger)
			v, err := services.NewViewService(ds, nil, nil).Views(ctx, f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().StringSliceVar(&fl.regions, "region", nil, "regions to include (repeatable, comma-separated)")
	cmd.Flags().StringSliceVar(&fl.categories, "category", nil, "categories to include (repeatable, comma-separated)")
	cmd.Flags().StringSliceVar(&fl.years, "year", nil, "order years to include (repeatable, comma-separated)")
	cmd.Flags().Float64Var(&fl.discountMin, "discount-min", core.MinDiscount, "lowest discount to include")
	cmd.Flags().Float64Var(&fl.discountMax, "discount-max", core.MaxDiscount, "highest discount to include")
	cmd.Flags().String("backend", "", "data backend: csv, sqlite or sheets (overrides DATA_BACKEND)")
	cmd.Flags().String("dataset", "", "CSV dataset path (overrides DATASET_PATH)")
	cmd.Flags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	return cmd
}

// filters runs the flags through the same parser as the HTTP query so both
// surfaces clamp and fall back identically.
func (fl viewFlags) filters(logger *applog.Logger) analytics.Filters {
	q := url.Values{}
	q[apphttp.ParamRegion] = fl.regions
	q[apphttp.ParamCategory] = fl.categories
	q[apphttp.ParamYear] = fl.years
	q.Set(apphttp.ParamDiscountMin, strconv.FormatFloat(fl.discountMin, 'f', -1, 64))
	q.Set(apphttp.ParamDiscountMax, strconv.FormatFloat(fl.discountMax, 'f', -1, 64))

	f, issues := apphttp.ParseFilters(q)
	for _, is := range issues {
		logger.Warn("Filter value adjusted", "param", is.Param, "value", is.Value, "fallback", is.Fix)
	}
	return f
}
