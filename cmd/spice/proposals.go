package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/spf13/cobra"
)

func proposalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Moderate global pattern proposals",
		Long: `Global proposals collect one vote per user for each generalized pattern.
A proposal is approved automatically once enough users agree; these commands
let a moderator list, approve or reject proposals by hand.`,
	}

	cmd.AddCommand(listProposalsCmd())
	cmd.AddCommand(approveProposalCmd())
	cmd.AddCommand(rejectProposalCmd())

	return cmd
}

func listProposalsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals with their vote distribution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			proposals, err := a.consensus.Proposals(ctx, model.ProposalStatus(status))
			if err != nil {
				return err
			}
			if len(proposals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.InfoStyle.Render(fmt.Sprintf("No %s proposals.", status)))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Pattern"),
				cli.TableHeaderStyle.Render("Leader"),
				cli.TableHeaderStyle.Render("Users"),
				cli.TableHeaderStyle.Render("Status"),
				cli.TableHeaderStyle.Render("Votes"))
			for _, p := range proposals {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.PatternText, p.CategoryID, p.UserCount, p.Status, formatVotes(p.VoteDistribution))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.ProposalPending), "pending, approved or rejected")
	return cmd
}

func approveProposalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <pattern> <category>",
		Short: "Approve or re-pin a proposal for a category, bypassing the vote threshold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out, err := a.learner.Approve(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("%s → %s approved", args[0], args[1])
			if out.PreviousStatus == model.ProposalApproved && out.PreviousCategory != args[1] {
				msg = fmt.Sprintf("%s re-pinned from %s to %s", args[0], out.PreviousCategory, args[1])
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, cli.FormatSuccess(msg))
			if out.Retracted > 0 || out.Seeded > 0 {
				fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("Global examples: %d retracted, %d added", out.Retracted, out.Seeded)))
			}
			return nil
		},
	}
}

func rejectProposalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <pattern>",
		Short: "Reject a pending proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.consensus.Reject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s rejected", args[0])))
			return nil
		},
	}
}

// formatVotes renders a vote distribution, most votes first.
func formatVotes(dist map[string]int) string {
	categories := make([]string, 0, len(dist))
	for c := range dist {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if dist[categories[i]] != dist[categories[j]] {
			return dist[categories[i]] > dist[categories[j]]
		}
		return categories[i] < categories[j]
	})

	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = fmt.Sprintf("%s:%d", c, dist[c])
	}
	return strings.Join(parts, " ")
}

