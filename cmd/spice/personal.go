package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/spf13/cobra"
)

func personalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personal",
		Short: "Inspect what has been learned for one user",
	}

	cmd.AddCommand(listPersonalCmd())

	return cmd
}

func listPersonalCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's learned patterns and embedding partition sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return listPersonal(ctx, store, cmd.OutOrStdout(), user)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type personalReader interface {
	ListPersonalPatterns(ctx context.Context, userID string) ([]model.PersonalPattern, error)
	CountEmbeddings(ctx context.Context, scope string) (int, error)
}

// listPersonal prints a user's personal patterns, most confirmed first,
// followed by the size of the user's and the global embedding partitions.
func listPersonal(ctx context.Context, store personalReader, out io.Writer, user string) error {
	patterns, err := store.ListPersonalPatterns(ctx, user)
	if err != nil {
		return err
	}
	userExamples, err := store.CountEmbeddings(ctx, user)
	if err != nil {
		return err
	}
	globalExamples, err := store.CountEmbeddings(ctx, model.GlobalScope)
	if err != nil {
		return err
	}

	if len(patterns) == 0 {
		fmt.Fprintln(out, cli.InfoStyle.Render(fmt.Sprintf("No personal patterns for %s.", user)))
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			cli.TableHeaderStyle.Render("Pattern"),
			cli.TableHeaderStyle.Render("Category"),
			cli.TableHeaderStyle.Render("Confirmed"),
			cli.TableHeaderStyle.Render("Confidence"),
			cli.TableHeaderStyle.Render("Last used"))
		for _, p := range patterns {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f%%\t%s\n",
				p.PatternText, p.CategoryID, p.TimesConfirmed, p.Confidence*100, p.LastUsed.Format("2006-01-02"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Embedding examples: %d for %s, %d global", userExamples, user, globalExamples)))
	return nil
}
