package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/cli"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/Veraticus/the-spice-must-learn/internal/ofx"
	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var user, format string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Record transaction descriptors in the transaction log",
		Long: `Read JSON lines of transaction descriptors (from a file or stdin) and store
them so they can be categorized and corrected by id.

Each line looks like:
  {"id":"t1","user_id":"alice","raw_text":"SINPE JUAN PEREZ","amount":15000,"currency":"CRC","timestamp":"2024-05-01T10:00:00Z"}

Missing ids are derived from the content; missing normalized text is computed.

With --format ofx the input is an OFX/QFX bank or card statement instead, and
--user names the owner of every transaction in it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			var descriptors []model.TransactionDescriptor
			var err error
			switch strings.ToLower(format) {
			case "jsonl", "json", "":
				descriptors, err = readDescriptors(in, user)
			case "ofx", "qfx":
				descriptors, err = ofx.NewParser(user, slog.Default()).Parse(cmd.Context(), in)
			default:
				return fmt.Errorf("unsupported format %q (want jsonl or ofx)", format)
			}
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			interrupts := cli.NewInterruptHandler(out, "Ingest")
			ctx := interrupts.HandleInterrupts(cmd.Context())
			defer interrupts.Stop()

			bar := cli.NewProgressBar(out, len(descriptors), "Ingesting transactions...")
			for i := range descriptors {
				if err := store.SaveTransaction(ctx, &descriptors[i]); err != nil {
					return fmt.Errorf("failed to save transaction %s: %w", descriptors[i].ID, err)
				}
				interrupts.Progress(i+1, len(descriptors))
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %d transactions", len(descriptors))))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id for lines that carry none")
	cmd.Flags().StringVar(&format, "format", "jsonl", "input format: jsonl or ofx")
	return cmd
}

// readDescriptors parses JSON lines, skipping blank ones. defaultUser fills
// a missing user_id.
func readDescriptors(r io.Reader, defaultUser string) ([]model.TransactionDescriptor, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []model.TransactionDescriptor
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var d model.TransactionDescriptor
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			return nil, fmt.Errorf("line %d: invalid descriptor: %w", line, err)
		}
		if d.UserID == "" {
			d.UserID = defaultUser
		}
		if d.UserID == "" {
			return nil, fmt.Errorf("line %d: user_id is required (or pass --user)", line)
		}
		d.NormalizedText = normalize.Text(d.RawText, d.NormalizedText)
		if d.NormalizedText == "" {
			return nil, fmt.Errorf("line %d: description has no usable text", line)
		}
		if d.ID == "" {
			d.ID = d.GenerateID()
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read descriptors: %w", err)
	}
	return out, nil
}
