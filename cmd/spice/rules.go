package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/pattern"
	"github.com/Veraticus/the-spice-must-learn/internal/storage"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the deterministic rule table",
		Long: `Rules are ordered keyword or regex patterns evaluated before any learned
signal. The first matching rule wins.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(importRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the effective rule table in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("#"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Pattern"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Confidence"))
			for i, r := range a.matcher.Rules() {
				p := r.Pattern
				if r.IsRegex {
					p = "/" + p + "/"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\n", i+1, r.Name, p, r.CategoryID, r.Confidence)
			}
			return nil
		},
	}
}

func addRuleCmd() *cobra.Command {
	var rule pattern.Rule

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a rule to the stored table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if rule.Name == "" {
				rule.Name = rule.Pattern
			}
			known, err := knownCategories(ctx, store)
			if err != nil {
				return err
			}
			if err := pattern.ValidateRule(rule, known); err != nil {
				return err
			}

			stored, err := store.GetActiveRules(ctx)
			if err != nil {
				return err
			}
			// The built-in table only applies while nothing is stored, so the
			// first stored rule carries the defaults with it.
			if len(stored) == 0 {
				if err := store.ReplaceRules(ctx, append(pattern.DefaultRules(), rule)); err != nil {
					return err
				}
			} else if err := store.CreateRule(ctx, &rule); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %q → %s added", rule.Name, rule.CategoryID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&rule.Name, "name", "", "rule name (defaults to the pattern)")
	cmd.Flags().StringVar(&rule.Pattern, "pattern", "", "keyword or regular expression")
	cmd.Flags().StringVar(&rule.CategoryID, "category", "", "category id")
	cmd.Flags().Float64Var(&rule.Confidence, "confidence", 0.95, "confidence reported for matches")
	cmd.Flags().BoolVar(&rule.IsRegex, "regex", false, "treat the pattern as a regular expression")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func importRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored rule table with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := pattern.LoadRulesFile(args[0])
			if err != nil {
				return err
			}
			known, err := knownCategories(ctx, store)
			if err != nil {
				return err
			}
			if err := pattern.ValidateRules(rules, known); err != nil {
				return err
			}
			if err := store.ReplaceRules(ctx, rules); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d rules", len(rules))))
			return nil
		},
	}
}

func knownCategories(ctx context.Context, store *storage.SQLiteStorage) (map[string]bool, error) {
	categories, err := store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	return known, nil
}
