// Package categories manages a user's categories and keeps the
// one-income-category invariant.
package categories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/views"
)

// MaxNameLength bounds category names.
const MaxNameLength = 100

// Service reads and changes the caller's categories.
type Service struct {
	store       service.Store
	summaries   service.SummaryCache
	revalidator service.Revalidator
}

// Option configures a Service.
type Option func(*Service)

// WithSummaryCache drops a user's cached summaries whenever a category
// change can move amounts between income and spending.
func WithSummaryCache(cache service.SummaryCache) Option {
	return func(s *Service) {
		s.summaries = cache
	}
}

// WithRevalidator marks derived views stale after category changes.
func WithRevalidator(r service.Revalidator) Option {
	return func(s *Service) {
		s.revalidator = r
	}
}

// NewService creates a category service over store.
func NewService(store service.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		revalidator: views.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the caller's categories ordered by name.
func (s *Service) List(ctx context.Context, externalID string) ([]model.Category, error) {
	user, err := auth.ResolveUser(ctx, s.store, externalID)
	if err != nil {
		return nil, err
	}
	return s.store.GetCategories(ctx, user.ID)
}

// EnsureIncome makes sure the caller has an income category and returns
// the up to date list. An existing income category is left alone; a legacy
// untyped "Income" category is retyped in place; otherwise one is created.
func (s *Service) EnsureIncome(ctx context.Context, externalID string) ([]model.Category, error) {
	user, err := auth.ResolveUser(ctx, s.store, externalID)
	if err != nil {
		return nil, err
	}

	cats, err := s.store.GetCategories(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var legacy *model.Category
	for i := range cats {
		if cats[i].Type == model.CategoryTypeIncome {
			return cats, nil
		}
		if cats[i].Name == model.IncomeCategoryName {
			legacy = &cats[i]
		}
	}

	if legacy != nil {
		err = s.store.UpdateCategoryType(ctx, user.ID, legacy.ID, model.CategoryTypeIncome)
		if err == nil {
			slog.InfoContext(ctx, "retyped legacy income category", "user_id", user.ID, "category_id", legacy.ID)
		}
	} else {
		_, err = s.store.CreateCategory(ctx, user.ID, model.IncomeCategoryName, model.CategoryTypeIncome)
		if err == nil {
			slog.InfoContext(ctx, "created income category", "user_id", user.ID)
		}
	}

	switch {
	case errors.Is(err, common.ErrDuplicateEntry):
		// A concurrent request already established the invariant.
		slog.DebugContext(ctx, "income category created concurrently", "user_id", user.ID)
	case err != nil:
		return nil, fmt.Errorf("failed to ensure income category: %w", err)
	default:
		s.changed(ctx, user.ID)
	}

	cats, err = s.store.GetCategories(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

// Create adds a category for the caller. Names are trimmed and unique per
// user, and a user holds at most one income category.
func (s *Service) Create(ctx context.Context, externalID, name string, categoryType model.CategoryType) (*model.Category, error) {
	user, err := auth.ResolveUser(ctx, s.store, externalID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, common.NewUserError("Enter a category name.", common.ErrValidation)
	case utf8.RuneCountInString(name) > MaxNameLength:
		return nil, common.NewUserError(
			fmt.Sprintf("Category names must not be more than %d characters.", MaxNameLength),
			common.ErrValidation)
	case !categoryType.Valid():
		return nil, common.NewUserError("Please select a category type.", common.ErrValidation)
	}

	cat, err := s.store.CreateCategory(ctx, user.ID, name, categoryType)
	if errors.Is(err, common.ErrDuplicateEntry) {
		msg := fmt.Sprintf("A category named %q already exists.", name)
		if categoryType == model.CategoryTypeIncome {
			msg = "You already have an income category."
		}
		return nil, common.NewUserError(msg, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return cat, nil
}

// Delete removes one of the caller's categories. Its transactions remain
// and report as uncategorized.
func (s *Service) Delete(ctx context.Context, externalID string, id int64) error {
	user, err := auth.ResolveUser(ctx, s.store, externalID)
	if err != nil {
		return err
	}

	err = s.store.DeleteCategory(ctx, user.ID, id)
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError("Category not found.", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	s.changed(ctx, user.ID)
	return nil
}

func (s *Service) changed(ctx context.Context, userID int64) {
	if s.summaries != nil {
		if err := s.summaries.InvalidateUser(ctx, userID); err != nil {
			slog.WarnContext(ctx, "failed to invalidate summaries", "user_id", userID, "error", err)
		}
	}
	s.revalidator.Revalidate(ctx, views.Derived...)
}
