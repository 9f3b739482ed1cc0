package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire format of transaction dates.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds Transaction.Description.
const MaxDescriptionLength = 255

// Transaction is a single income or expense entry owned by a user.
// Date carries no time of day; it is always midnight UTC.
type Transaction struct {
	Date        time.Time       `json:"transactionDate"`
	CreatedAt   time.Time       `json:"createdAt"`
	DeletedAt   *time.Time      `json:"deletedAt,omitempty"`
	Category    *Category       `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        CategoryType    `json:"type"`
	ID          int64           `json:"id"`
	UserID      int64           `json:"-"`
	CategoryID  int64           `json:"categoryId"`
}

// EffectiveType is the type used for reporting: the resolved category's
// type when the category is known, else the transaction's own type.
func (t *Transaction) EffectiveType() CategoryType {
	if t.Category != nil && t.Category.Type.Valid() {
		return t.Category.Type
	}
	return t.Type
}

// CategoryName returns the joined category name or the uncategorized label.
func (t *Transaction) CategoryName() string {
	if t.Category == nil || t.Category.Name == "" {
		return UncategorizedName
	}
	return t.Category.Name
}

// IsDeleted reports whether the transaction has been soft deleted.
func (t *Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
