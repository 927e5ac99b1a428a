package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/spf13/cobra"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect and label peer-to-peer counterparties",
	}

	cmd.AddCommand(showContactCmd())
	cmd.AddCommand(aliasContactCmd())

	return cmd
}

func showContactCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "show <counterparty>",
		Short: "Show what has been learned about a counterparty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c, err := store.GetContact(ctx, user, args[0])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("No contact %s for user %s", args[0], user), err)
			}
			if err != nil {
				return err
			}

			name := c.CounterpartyID
			if c.Alias != "" {
				name = fmt.Sprintf("%s (%s)", c.Alias, c.CounterpartyID)
			}
			body := fmt.Sprintf("Relationship: %s\nCategory:     %s\nTransactions: %d\nTotal:        %.2f\nConfidence:   %.0f%%",
				orNone(c.RelationshipType), orNone(c.DefaultCategoryID), c.TransactionCount, c.TotalAmount, c.Confidence()*100)
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(name, body))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func aliasContactCmd() *cobra.Command {
	var user, relationship string

	cmd := &cobra.Command{
		Use:   "alias <counterparty> <alias>",
		Short: "Name a counterparty",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetContactAlias(ctx, user, args[0], args[1], relationship); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s is now %q", args[0], args[1])))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&relationship, "relationship", "", "relationship, e.g. family or landlord")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
