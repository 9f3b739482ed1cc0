package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Field names used as FieldErrors keys. They match the JSON input names.
const (
	FieldDescription     = "description"
	FieldAmount          = "amount"
	FieldTransactionDate = "transactionDate"
	FieldType            = "type"
	FieldCategoryID      = "categoryId"
	FieldIDs             = "ids"
)

// User facing validation messages.
const (
	MsgDescriptionTooLong = "Description must not be more than 255 characters."
	MsgAmountRequired     = "Enter an amount."
	MsgAmountPositive     = "Enter an amount greater than 0."
	MsgAmountTooLarge     = "Enter an amount less than 100,000,000."
	MsgDateRequired       = "Please select a date."
	MsgTypeRequired       = "Please select a transaction type."
	MsgCategoryRequired   = "Please choose a category."
	MsgSelectTransactions = "Select at least one transaction."
)

// maxAmount is the first value that no longer fits decimal(10,2).
var maxAmount = decimal.NewFromInt(100_000_000)

// FieldErrors maps an input field to every message it failed with.
type FieldErrors map[string][]string

// Add records msg against field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// HasErrors reports whether any field failed.
func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

// TransactionInput is the raw form of a create or full update request.
// Amount and CategoryID stay strings until validated.
type TransactionInput struct {
	TransactionDate *time.Time         `json:"transactionDate"`
	Description     string             `json:"description"`
	Amount          string             `json:"amount"`
	Type            model.CategoryType `json:"type"`
	CategoryID      string             `json:"categoryId"`
}

// ValidateTransaction checks every field and reports all failures at once.
// A nil result means the input is valid.
func ValidateTransaction(in TransactionInput) FieldErrors {
	errs := FieldErrors{}

	if utf8.RuneCountInString(in.Description) > model.MaxDescriptionLength {
		errs.Add(FieldDescription, MsgDescriptionTooLong)
	}

	amount := strings.TrimSpace(in.Amount)
	if amount == "" {
		errs.Add(FieldAmount, MsgAmountRequired)
	} else if d, err := decimal.NewFromString(amount); err != nil || !d.IsPositive() {
		errs.Add(FieldAmount, MsgAmountPositive)
	} else if d.Round(2).GreaterThanOrEqual(maxAmount) {
		errs.Add(FieldAmount, MsgAmountTooLarge)
	}

	if in.TransactionDate == nil || in.TransactionDate.IsZero() {
		errs.Add(FieldTransactionDate, MsgDateRequired)
	}

	if !in.Type.Valid() {
		errs.Add(FieldType, MsgTypeRequired)
	}

	if strings.TrimSpace(in.CategoryID) == "" {
		errs.Add(FieldCategoryID, MsgCategoryRequired)
	}

	if !errs.HasErrors() {
		return nil
	}
	return errs
}

// TransactionPatch is a partial update. Nil fields are left unchanged.
type TransactionPatch struct {
	Description     *string             `json:"description,omitempty"`
	Amount          *string             `json:"amount,omitempty"`
	TransactionDate *time.Time          `json:"transactionDate,omitempty"`
	Type            *model.CategoryType `json:"type,omitempty"`
	CategoryID      *string             `json:"categoryId,omitempty"`
}

// Apply overlays the present fields of p onto base.
func (p TransactionPatch) Apply(base TransactionInput) TransactionInput {
	if p.Description != nil {
		base.Description = *p.Description
	}
	if p.Amount != nil {
		base.Amount = *p.Amount
	}
	if p.TransactionDate != nil {
		d := *p.TransactionDate
		base.TransactionDate = &d
	}
	if p.Type != nil {
		base.Type = *p.Type
	}
	if p.CategoryID != nil {
		base.CategoryID = *p.CategoryID
	}
	return base
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.TransactionDate == nil &&
		p.Type == nil && p.CategoryID == nil
}
