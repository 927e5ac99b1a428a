package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"github.com/spf13/cobra"
)

type categorizeOptions struct {
	since        string
	user         string
	counterparty string
	currency     string
	amount       float64
	limit        int
	batch        bool
	asJSON       bool
}

func categorizeCmd() *cobra.Command {
	var opts categorizeOptions

	cmd := &cobra.Command{
		Use:   "categorize [description]",
		Short: "Categorize a description or the logged transactions of a user",
		Long: `Run the categorization cascade. With a description, categorize that single
transaction; with --batch, categorize the user's logged transactions.

Results are never stored: use 'spice correct' or 'spice review' to teach.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.user == "" {
				return fmt.Errorf("--user is required")
			}
			if opts.batch == (len(args) == 1) {
				return fmt.Errorf("pass either a description or --batch")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !opts.batch {
				d := model.TransactionDescriptor{
					UserID:         opts.user,
					RawText:        args[0],
					CounterpartyID: opts.counterparty,
					Amount:         opts.amount,
					Currency:       opts.currency,
					Timestamp:      time.Now().UTC(),
				}
				res, err := a.engine.Categorize(cmd.Context(), d)
				if err != nil {
					return err
				}
				return printResults(cmd.OutOrStdout(), []model.TransactionDescriptor{d}, []model.CategorizationResult{res}, opts.asJSON)
			}

			filter := service.TransactionFilter{UserID: opts.user, Limit: opts.limit}
			if opts.since != "" {
				since, err := time.Parse("2006-01-02", opts.since)
				if err != nil {
					return fmt.Errorf("invalid --since date: %w", err)
				}
				filter.Since = &since
			}
			ds, err := a.store.ListTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(ds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No logged transactions. Use 'spice ingest' first."))
				return nil
			}

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Categorization")
			ctx := interrupts.HandleInterrupts(cmd.Context())
			defer interrupts.Stop()

			results, err := a.engine.CategorizeBatch(ctx, ds)
			if err != nil {
				return err
			}
			interrupts.Progress(len(ds), len(ds))
			return printResults(cmd.OutOrStdout(), ds, results, opts.asJSON)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user id")
	cmd.Flags().StringVar(&opts.counterparty, "counterparty", "", "counterparty id (phone, IBAN) for peer-to-peer transfers")
	cmd.Flags().Float64Var(&opts.amount, "amount", 0, "transaction amount")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "ISO currency code")
	cmd.Flags().BoolVar(&opts.batch, "batch", false, "categorize the user's logged transactions")
	cmd.Flags().StringVar(&opts.since, "since", "", "with --batch, only transactions on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "with --batch, maximum number of transactions")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON lines")

	return cmd
}

type resultLine struct {
	model.CategorizationResult
	TransactionID string `json:"transaction_id,omitempty"`
	Text          string `json:"text"`
}

func printResults(w io.Writer, ds []model.TransactionDescriptor, results []model.CategorizationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for i, r := range results {
			if err := enc.Encode(resultLine{CategorizationResult: r, TransactionID: ds[i].ID, Text: ds[i].RawText}); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
		}
		return nil
	}

	byMethod := make(map[string]int)
	review := 0
	for i, r := range results {
		fmt.Fprintln(w, cli.FormatResult(ds[i].RawText, r))
		if alt := cli.FormatAlternatives(r.Alternatives); alt != "" {
			fmt.Fprintln(w, "    "+alt)
		}
		method := string(r.Method)
		if method == "" {
			method = "unresolved"
		}
		byMethod[method]++
		if r.NeedsReview {
			review++
		}
	}

	if len(results) > 1 {
		methods := make([]string, 0, len(byMethod))
		for m := range byMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		fmt.Fprintln(w)
		for _, m := range methods {
			fmt.Fprintf(w, "  %-12s %d\n", m, byMethod[m])
		}
		if review > 0 {
			fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("%d need review: run 'spice review'", review)))
		}
	}
	return nil
}
