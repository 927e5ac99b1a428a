package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/learner"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/spf13/cobra"
)

func correctCmd() *cobra.Command {
	var (
		user         string
		text         string
		counterparty string
		amount       float64
	)

	cmd := &cobra.Command{
		Use:   "correct [transaction-id] <category>",
		Short: "Teach the engine the right category for a transaction",
		Long: `Record a user's correction. The correction updates the user's personal
patterns, their contact (for peer-to-peer transfers), their embedding
partition, and casts their vote towards global consensus.

Refer to a logged transaction by id, or pass --text to correct a description
directly (it is logged first).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var transactionID, category string
			switch {
			case len(args) == 2 && text == "":
				transactionID, category = args[0], args[1]
			case len(args) == 1 && text != "":
				category = args[0]
				d := model.TransactionDescriptor{
					UserID:         user,
					RawText:        text,
					NormalizedText: normalize.Normalize(text),
					CounterpartyID: counterparty,
					Amount:         amount,
					Timestamp:      time.Now().UTC(),
				}
				d.ID = d.GenerateID()
				if err := a.store.SaveTransaction(ctx, &d); err != nil {
					return err
				}
				transactionID = d.ID
			default:
				return fmt.Errorf("pass <transaction-id> <category>, or --text with <category>")
			}

			out, err := a.learner.RecordCorrection(ctx, transactionID, category, user)
			if err != nil && common.IsRetryable(err) {
				return common.NewUserError("Correction partially applied; please retry", err)
			}
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), category, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&text, "text", "", "correct this description instead of a logged transaction")
	cmd.Flags().StringVar(&counterparty, "counterparty", "", "with --text, the counterparty id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "with --text, the amount")
	return cmd
}

func printOutcome(w io.Writer, category string, out learner.Outcome) {
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("Learned %s for %s", category, out.Key)))
	if p := out.Personal.Pattern; p.CategoryID != "" {
		fmt.Fprintf(w, "  personal: confirmed %d× (confidence %.2f)\n", p.TimesConfirmed, p.Confidence)
	}
	if out.Personal.Overridden() {
		fmt.Fprintln(w, "  "+cli.FormatWarning("replaced previous category "+out.Personal.PreviousCategory))
	}
	if out.Contact != nil {
		fmt.Fprintf(w, "  contact: %s seen %d×\n", out.Contact.Contact.CounterpartyID, out.Contact.Contact.TransactionCount)
	}
	if v := out.Vote; v != nil {
		fmt.Fprintf(w, "  global %s: %d users, status %s\n", out.Pattern, v.Proposal.UserCount, v.Proposal.Status)
		if v.Promoted {
			fmt.Fprintln(w, "  "+cli.FormatSuccess("promoted to global knowledge"))
		}
	}
}
