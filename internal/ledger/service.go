// Package ledger implements the write side of the tracker: creating,
// editing, recategorizing and deleting a user's transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/period"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/validation"
	"github.com/Veraticus/spice-ledger/internal/views"
)

// Messages returned in Result.Message.
const (
	MsgUnauthorized     = "User not authenticated."
	MsgValidationFailed = "Form validation failed."
	MsgUserNotFound     = "Could not find your account."
	MsgChooseCategory   = "Please choose a category."
	MsgInvalidCategory  = "Invalid category selection."
	MsgTypeMismatch     = "Selected category doesn’t match the chosen type."
	MsgBulkTypeMismatch = "Selected category doesn’t match the type of every selected transaction."
	MsgNotFound         = "Transaction not found."
	MsgPartialNotFound  = "Some transactions could not be found."
	MsgCreated          = "Transaction added successfully!"
	MsgUpdated          = "Transaction updated successfully!"
	MsgDeleted          = "Transaction deleted."
	MsgSaveFailed       = "An error occurred while saving. Please try again."
)

// Result is the outcome of a mutation. Err carries the common sentinel the
// failure maps to and is never shown to the user.
type Result struct {
	Err     error                  `json:"-"`
	Errors  validation.FieldErrors `json:"errors,omitempty"`
	Message string                 `json:"message"`
	ID      int64                  `json:"id,omitempty"`
	Count   int64                  `json:"count,omitempty"`
	Success bool                   `json:"success"`
}

func failure(err error, msg string) Result {
	return Result{Err: err, Message: msg}
}

// Service validates and applies transaction mutations for the caller
// reported by its identity.
type Service struct {
	storage     service.Storage
	identity    service.Identity
	revalidator service.Revalidator
	summaries   service.SummaryCache
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSummaryCache invalidates cached month summaries after each write.
func WithSummaryCache(cache service.SummaryCache) Option {
	return func(s *Service) {
		s.summaries = cache
	}
}

// WithClock overrides the time source used for deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a ledger service. A nil revalidator disables view
// revalidation.
func NewService(storage service.Storage, identity service.Identity, revalidator service.Revalidator, opts ...Option) *Service {
	if revalidator == nil {
		revalidator = views.Nop{}
	}
	s := &Service{
		storage:     storage,
		identity:    identity,
		revalidator: revalidator,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a new transaction.
func (s *Service) Create(ctx context.Context, in validation.TransactionInput) Result {
	ext, ok := s.identity.ExternalID(ctx)
	if !ok {
		return failure(common.ErrUnauthorized, MsgUnauthorized)
	}

	// Field errors are reported before the account lookup.
	if errs := validation.ValidateTransaction(in); errs != nil {
		return Result{Err: common.ErrValidation, Message: MsgValidationFailed, Errors: errs}
	}

	user, res, ok := s.resolve(ctx, ext)
	if !ok {
		return res
	}

	cat, res, ok := s.category(ctx, s.storage, user.ID, in.CategoryID, MsgChooseCategory)
	if !ok {
		return res
	}
	if cat.Type != in.Type {
		return failure(common.ErrTypeMismatch, MsgTypeMismatch)
	}

	txn, err := build(user.ID, cat.ID, in)
	if err != nil {
		return s.internal(ctx, "create", err)
	}
	if err := s.storage.CreateTransaction(ctx, txn); err != nil {
		return s.internal(ctx, "create", err)
	}

	slog.InfoContext(ctx, "transaction created", "id", txn.ID, "user_id", user.ID, "type", txn.Type)
	s.written(ctx, user.ID, period.MonthKey(txn.Date))
	return Result{Success: true, Message: MsgCreated, ID: txn.ID}
}

// Update applies patch to a live transaction owned by the caller. The merged
// result is validated as a whole, including category ownership and type.
func (s *Service) Update(ctx context.Context, id int64, patch validation.TransactionPatch) Result {
	user, res, ok := s.caller(ctx)
	if !ok {
		return res
	}

	existing, err := s.storage.GetTransactionByID(ctx, user.ID, id)
	if errors.Is(err, common.ErrNotFound) {
		return failure(common.ErrNotFound, MsgNotFound)
	}
	if err != nil {
		return s.internal(ctx, "update", err)
	}

	in := patch.Apply(inputOf(existing))
	if errs := validation.ValidateTransaction(in); errs != nil {
		return Result{Err: common.ErrValidation, Message: MsgValidationFailed, Errors: errs}
	}

	cat, res, ok := s.category(ctx, s.storage, user.ID, in.CategoryID, MsgInvalidCategory)
	if !ok {
		return res
	}
	if cat.Type != in.Type {
		return failure(common.ErrTypeMismatch, MsgTypeMismatch)
	}

	txn, err := build(user.ID, cat.ID, in)
	if err != nil {
		return s.internal(ctx, "update", err)
	}
	txn.ID = existing.ID

	err = s.storage.UpdateTransaction(ctx, txn)
	if errors.Is(err, common.ErrNotFound) {
		// Deleted between the read and the write.
		return failure(common.ErrNotFound, MsgNotFound)
	}
	if err != nil {
		return s.internal(ctx, "update", err)
	}

	slog.InfoContext(ctx, "transaction updated", "id", id, "user_id", user.ID)
	s.written(ctx, user.ID, period.MonthKey(existing.Date), period.MonthKey(txn.Date))
	return Result{Success: true, Message: MsgUpdated, ID: id}
}

// BulkRecategorize moves every transaction in ids to categoryID. Either all
// of them move or none do.
func (s *Service) BulkRecategorize(ctx context.Context, ids []int64, categoryID string) Result {
	user, res, ok := s.caller(ctx)
	if !ok {
		return res
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		errs := validation.FieldErrors{}
		errs.Add(validation.FieldIDs, validation.MsgSelectTransactions)
		return Result{Err: common.ErrValidation, Message: MsgValidationFailed, Errors: errs}
	}

	tx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return s.internal(ctx, "recategorize", err)
	}
	defer func() { _ = tx.Rollback() }()

	cat, res, ok := s.category(ctx, tx, user.ID, categoryID, MsgInvalidCategory)
	if !ok {
		return res
	}

	txns, err := tx.GetTransactionsByIDs(ctx, user.ID, ids)
	if err != nil {
		return s.internal(ctx, "recategorize", err)
	}
	if len(txns) != len(ids) {
		slog.InfoContext(ctx, "recategorize rejected", "user_id", user.ID, "requested", len(ids), "found", len(txns))
		return failure(common.ErrPartialNotFound, MsgPartialNotFound)
	}

	months := make([]string, 0, len(txns))
	for i := range txns {
		if txns[i].EffectiveType() != cat.Type {
			return failure(common.ErrTypeMismatch, MsgBulkTypeMismatch)
		}
		months = append(months, period.MonthKey(txns[i].Date))
	}

	n, err := tx.SetTransactionsCategory(ctx, user.ID, ids, cat.ID)
	if err != nil {
		return s.internal(ctx, "recategorize", err)
	}
	if n != int64(len(ids)) {
		return failure(common.ErrPartialNotFound, MsgPartialNotFound)
	}

	if err := tx.Commit(); err != nil {
		return s.internal(ctx, "recategorize", err)
	}

	slog.InfoContext(ctx, "transactions recategorized", "user_id", user.ID, "category_id", cat.ID, "count", n)
	s.written(ctx, user.ID, months...)
	return Result{Success: true, Message: fmt.Sprintf("Updated %d transactions.", n), Count: n}
}

// Delete soft deletes a transaction owned by the caller. Deleting an
// already deleted transaction succeeds.
func (s *Service) Delete(ctx context.Context, id int64) Result {
	user, res, ok := s.caller(ctx)
	if !ok {
		return res
	}

	existing, err := s.storage.GetTransactionByID(ctx, user.ID, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		existing = nil
	case err != nil:
		return s.internal(ctx, "delete", err)
	}

	err = s.storage.SoftDeleteTransaction(ctx, user.ID, id, s.now())
	if errors.Is(err, common.ErrNotFound) {
		return failure(common.ErrNotFound, MsgNotFound)
	}
	if err != nil {
		return s.internal(ctx, "delete", err)
	}

	if existing == nil {
		// Already deleted; nothing derived changed.
		return Result{Success: true, Message: MsgDeleted, ID: id}
	}

	slog.InfoContext(ctx, "transaction deleted", "id", id, "user_id", user.ID)
	s.written(ctx, user.ID, period.MonthKey(existing.Date))
	return Result{Success: true, Message: MsgDeleted, ID: id}
}

// caller resolves the authenticated user. When ok is false res holds the
// failure to return.
func (s *Service) caller(ctx context.Context) (*model.User, Result, bool) {
	ext, ok := s.identity.ExternalID(ctx)
	if !ok {
		return nil, failure(common.ErrUnauthorized, MsgUnauthorized), false
	}
	return s.resolve(ctx, ext)
}

func (s *Service) resolve(ctx context.Context, ext string) (*model.User, Result, bool) {
	user, err := auth.ResolveUser(ctx, s.storage, ext)
	if errors.Is(err, common.ErrUserNotFound) {
		return nil, failure(common.ErrUserNotFound, MsgUserNotFound), false
	}
	if err != nil {
		return nil, s.internal(ctx, "resolve user", err), false
	}
	return user, Result{}, true
}

// category resolves a category reference owned by userID. A reference that
// is not a number fails with notNumeric.
func (s *Service) category(ctx context.Context, store service.Store, userID int64, ref, notNumeric string) (*model.Category, Result, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return nil, failure(common.ErrCategoryNotFound, notNumeric), false
	}

	cat, err := store.GetCategoryByID(ctx, userID, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, failure(common.ErrCategoryNotFound, MsgInvalidCategory), false
	}
	if err != nil {
		return nil, s.internal(ctx, "resolve category", err), false
	}
	return cat, Result{}, true
}

func (s *Service) internal(ctx context.Context, op string, err error) Result {
	slog.ErrorContext(ctx, "transaction mutation failed", "op", op, "error", err)
	return failure(err, MsgSaveFailed)
}

// written runs the side effects of a successful write.
func (s *Service) written(ctx context.Context, userID int64, months ...string) {
	if s.summaries != nil {
		if err := s.summaries.InvalidateMonths(ctx, userID, months...); err != nil {
			slog.WarnContext(ctx, "failed to invalidate month summaries", "user_id", userID, "months", months, "error", err)
		}
	}
	s.revalidator.Revalidate(ctx, views.Derived...)
}

func build(userID, categoryID int64, in validation.TransactionInput) (*model.Transaction, error) {
	amount, err := validation.ParseAmount(in.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse validated amount: %w", err)
	}
	return &model.Transaction{
		UserID:      userID,
		CategoryID:  categoryID,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Date:        model.DateOnly(*in.TransactionDate),
		Type:        in.Type,
	}, nil
}

func inputOf(txn *model.Transaction) validation.TransactionInput {
	date := txn.Date
	return validation.TransactionInput{
		TransactionDate: &date,
		Description:     txn.Description,
		Amount:          txn.Amount.StringFixed(2),
		Type:            txn.EffectiveType(),
		CategoryID:      strconv.FormatInt(txn.CategoryID, 10),
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
