package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// ErrReviewQuit is returned when the user ends a review session.
var ErrReviewQuit = errors.New("review ended by user")

// ReviewItem is one categorization waiting for a human decision.
type ReviewItem struct {
	Descriptor model.TransactionDescriptor
	Result     model.CategorizationResult
	// Position and Total place the item within the session.
	Position int
	Total    int
}

// Decision is the reviewer's answer. Skip leaves the transaction untouched.
type Decision struct {
	CategoryID string
	Skip       bool
}

// Reviewer walks a user through results that need review. Every confirmed
// answer becomes a correction, so it is how generative suggestions turn into
// learned knowledge.
type Reviewer struct {
	reader     *NonBlockingReader
	writer     io.Writer
	categories []model.Category
}

// NewReviewer creates a reviewer offering categories as choices.
func NewReviewer(reader io.Reader, writer io.Writer, categories []model.Category) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Reviewer{
		reader:     NewNonBlockingReader(reader),
		writer:     writer,
		categories: categories,
	}
}

// Review shows one item and reads the decision. Enter accepts the suggested
// category, "s" skips, "q" quits, "?" lists categories; anything else is a
// category number, id or name.
func (r *Reviewer) Review(ctx context.Context, item ReviewItem) (Decision, error) {
	if _, err := fmt.Fprintln(r.writer, RenderBox(r.title(item), r.details(item))); err != nil {
		return Decision{}, fmt.Errorf("failed to write review item: %w", err)
	}

	for {
		prompt := "Category ([s]kip, [q]uit, [?] list)"
		if item.Result.Resolved() {
			prompt = fmt.Sprintf("Category [Enter = %s] ([s]kip, [q]uit, [?] list)", item.Result.Category())
		}
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return Decision{}, fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := r.reader.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return Decision{}, ErrReviewQuit
		}
		if err != nil {
			return Decision{}, err
		}

		switch strings.ToLower(line) {
		case "":
			if item.Result.Resolved() {
				return Decision{CategoryID: item.Result.Category()}, nil
			}
			continue
		case "s", "skip":
			return Decision{Skip: true}, nil
		case "q", "quit":
			return Decision{}, ErrReviewQuit
		case "?":
			r.listCategories()
			continue
		}

		if id, ok := r.resolve(line); ok {
			return Decision{CategoryID: id}, nil
		}
		_, _ = fmt.Fprintln(r.writer, FormatError(fmt.Sprintf("Unknown category %q", line)))
	}
}

func (r *Reviewer) title(item ReviewItem) string {
	if item.Total > 0 {
		return fmt.Sprintf("Review %d/%d", item.Position, item.Total)
	}
	return "Review"
}

func (r *Reviewer) details(item ReviewItem) string {
	d := item.Descriptor
	lines := []string{
		BoldStyle.Render(d.RawText),
		fmt.Sprintf("%.2f %s  %s", d.Amount, d.Currency, d.Timestamp.Format("2006-01-02")),
		FormatResult(d.NormalizedText, item.Result),
	}
	if d.CounterpartyID != "" {
		lines = append(lines, SubtleStyle.Render("counterparty: "+d.CounterpartyID))
	}
	if alt := FormatAlternatives(item.Result.Alternatives); alt != "" {
		lines = append(lines, alt)
	}
	return strings.Join(lines, "\n")
}

func (r *Reviewer) listCategories() {
	for i, c := range r.categories {
		_, _ = fmt.Fprintf(r.writer, "  %2d. %s\n", i+1, c.ID)
	}
}

// resolve matches a list number, category id or name.
func (r *Reviewer) resolve(input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(r.categories) {
			return r.categories[n-1].ID, true
		}
		return "", false
	}
	for _, c := range r.categories {
		if strings.EqualFold(c.ID, input) || strings.EqualFold(c.Name, input) {
			return c.ID, true
		}
	}
	return "", false
}
