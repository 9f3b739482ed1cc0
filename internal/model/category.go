package model

import "time"

// CategoryType indicates whether a category holds income or expense transactions.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// IncomeCategoryName is the conventional name of a user's income category.
const IncomeCategoryName = "Income"

// UncategorizedName labels transactions whose category no longer resolves.
const UncategorizedName = "Uncategorized"

// Valid reports whether t is one of the known category types.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category groups a user's transactions. Names are unique per user.
type Category struct {
	CreatedAt time.Time    `json:"createdAt"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	ID        int64        `json:"id"`
	UserID    int64        `json:"-"`
}
