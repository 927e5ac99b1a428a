package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	var (
		user  string
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively confirm results that need review",
		Long: `Categorize the user's logged transactions and walk through every result
flagged for review (or all of them with --all). Each confirmed category is
recorded as a correction.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ds, err := a.store.ListTransactions(ctx, service.TransactionFilter{UserID: user, Limit: limit})
			if err != nil {
				return err
			}
			results, err := a.engine.CategorizeBatch(ctx, ds)
			if err != nil {
				return err
			}

			var items []cli.ReviewItem
			for i, r := range results {
				if all || r.NeedsReview {
					items = append(items, cli.ReviewItem{Descriptor: ds[i], Result: r})
				}
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, cli.FormatSuccess("Nothing to review"))
				return nil
			}

			categories, err := a.store.GetCategories(ctx)
			if err != nil {
				return err
			}
			reviewer := cli.NewReviewer(cmd.InOrStdin(), out, categories)

			learned, skipped := 0, 0
			for i := range items {
				items[i].Position, items[i].Total = i+1, len(items)
				decision, err := reviewer.Review(ctx, items[i])
				if errors.Is(err, cli.ErrReviewQuit) || errors.Is(err, cli.ErrInputCancelled) {
					break
				}
				if err != nil {
					return err
				}
				if decision.Skip {
					skipped++
					continue
				}

				if _, err := a.learner.RecordCorrection(ctx, items[i].Descriptor.ID, decision.CategoryID, user); err != nil {
					slog.Warn("Correction not fully applied",
						"transaction", items[i].Descriptor.ID,
						"category", decision.CategoryID,
						"error", err)
					fmt.Fprintln(out, cli.FormatError(err.Error()))
					continue
				}
				learned++
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Learned %d, skipped %d of %d", learned, skipped, len(items))))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of logged transactions to consider")
	cmd.Flags().BoolVar(&all, "all", false, "review every result, not only flagged ones")
	return cmd
}
