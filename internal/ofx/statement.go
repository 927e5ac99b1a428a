// Package ofx reads OFX/QFX bank and credit card statements into transaction
// descriptors ready for the transaction log.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags missing their closing bracket in SGML-style files.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser converts statements for one user.
type Parser struct {
	logger *slog.Logger
	userID string
}

// NewParser creates a parser attributing every transaction to userID.
func NewParser(userID string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{userID: userID, logger: logger}
}

// preprocess fixes common formatting issues in OFX files.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r. Statements
// without a transaction list contribute nothing.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]model.TransactionDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.userID == "" {
		return nil, fmt.Errorf("ofx: user id is required")
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var out []model.TransactionDescriptor
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			out = append(out, p.convert(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID), stmt.CurDef.String())...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			out = append(out, p.convert(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID), stmt.CurDef.String())...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(out),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return out, nil
}

func (p *Parser) convert(txns []ofxgo.Transaction, accountID, currency string) []model.TransactionDescriptor {
	out := make([]model.TransactionDescriptor, 0, len(txns))
	for _, tx := range txns {
		raw := Description(tx)
		d := model.TransactionDescriptor{
			UserID:         p.userID,
			RawText:        raw,
			NormalizedText: normalize.Normalize(raw),
			Amount:         amount(tx),
			Currency:       currency,
			Timestamp:      tx.DtPosted.Time.UTC(),
		}
		if d.NormalizedText == "" {
			p.logger.Warn("Skipping OFX transaction without usable description",
				"account", accountID,
				"fitid", string(tx.FiTID))
			continue
		}
		if tx.FiTID != "" {
			d.ID = fmt.Sprintf("%s:%s", accountID, tx.FiTID)
		} else {
			d.ID = d.GenerateID()
		}
		out = append(out, d)
	}
	return out
}

// amount is the absolute transaction amount; OFX signs debits negative.
func amount(tx ofxgo.Transaction) float64 {
	f, _ := tx.TrnAmt.Float64()
	if f < 0 {
		return -f
	}
	return f
}

var purchasePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Description picks the most merchant-like text of a transaction: the payee
// when present, otherwise the name, or the memo when the name is generic.
// Card-network prefixes and a leading MM/DD are removed.
func Description(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericDescriptions[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	for _, prefix := range purchasePrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}
