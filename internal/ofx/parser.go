// Package ofx reads OFX/QFX bank exports into ledger entries.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/validation"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Entry is one statement line ready to be recorded as a transaction.
type Entry struct {
	Date        time.Time
	Amount      decimal.Decimal
	FITID       string
	AccountID   string
	Description string
	Type        model.CategoryType
}

// Input converts the entry into a create request against categoryID.
func (e Entry) Input(categoryID int64) validation.TransactionInput {
	date := e.Date
	return validation.TransactionInput{
		TransactionDate: &date,
		Description:     e.Description,
		Amount:          e.Amount.StringFixed(2),
		Type:            e.Type,
		CategoryID:      fmt.Sprintf("%d", categoryID),
	}
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Some SGML exports drop the closing bracket of bare tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file. Debits become expense entries and
// credits income entries; zero amounts and repeated FITIDs are skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var bankStmts, ccStmts int
	seen := make(map[string]bool)

	add := func(list *ofxgo.TransactionList, accountID string) {
		if list == nil {
			return
		}
		for _, ofxTx := range list.Transactions {
			entry, ok := p.convertTransaction(ofxTx, accountID)
			if !ok {
				slog.DebugContext(ctx, "skipping zero amount transaction", "fitid", entry.FITID)
				continue
			}
			key := accountID + "/" + entry.FITID
			if entry.FITID != "" && seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, entry)
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			add(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			add(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))
		}
	}

	slog.InfoContext(ctx, "Parsed OFX file",
		"total_transactions", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

// convertTransaction maps an OFX transaction onto an entry. ok is false for
// zero amounts, which cannot be recorded.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) (Entry, bool) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}

	entry := Entry{
		FITID:       string(ofxTx.FiTID),
		AccountID:   accountID,
		Date:        model.DateOnly(ofxTx.DtPosted.Time),
		Description: truncate(p.extractMerchantName(ofxTx), model.MaxDescriptionLength),
		Amount:      amount.Abs(),
		Type:        model.CategoryTypeExpense,
	}
	if amount.IsPositive() {
		entry.Type = model.CategoryTypeIncome
	}
	return entry, !amount.IsZero()
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"ACH CREDIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE", "DEPOSIT":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// GetAccounts lists the account ids found in the file, sorted.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			accountMap[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			accountMap[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(accountMap))
	for acct := range accountMap {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
