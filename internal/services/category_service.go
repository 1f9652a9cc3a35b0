package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
)

// CategoryService manages the owner's transaction categories.
type CategoryService struct {
	store ports.CategoryStore
	now   func() time.Time
	newID func() string
}

func NewCategoryService(store ports.CategoryStore) *CategoryService {
	return &CategoryService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (s *CategoryService) checkName(ctx context.Context, ownerID, name, excludeID string) error {
	taken, err := s.store.CategoryNameTaken(ctx, ownerID, name, excludeID)
	if err != nil {
		return fmt.Errorf("check category name: %w", err)
	}
	if taken {
		return fmt.Errorf("category %q: %w", name, core.ErrDuplicateLabel)
	}
	return nil
}

func (s *CategoryService) Create(ctx context.Context, ownerID string, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := s.checkName(ctx, ownerID, name, ""); err != nil {
		return core.Category{}, err
	}

	now := s.now()
	c := core.Category{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      name,
		ImageRef:  strings.TrimSpace(in.ImageRef),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "owner_id", ownerID, "category_id", c.ID)
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, ownerID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, ownerID)
}

// Update renames a category. An empty image reference keeps the old one.
func (s *CategoryService) Update(ctx context.Context, ownerID, id string, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	cur, err := s.store.GetCategory(ctx, ownerID, id)
	if err != nil {
		return core.Category{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := s.checkName(ctx, ownerID, name, id); err != nil {
		return core.Category{}, err
	}

	cur.Name = name
	if ref := strings.TrimSpace(in.ImageRef); ref != "" {
		cur.ImageRef = ref
	}
	cur.UpdatedAt = s.now()
	if err := s.store.UpdateCategory(ctx, cur); err != nil {
		return core.Category{}, err
	}
	return cur, nil
}

// Delete removes the category. Transactions pointing at it are kept.
func (s *CategoryService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteCategory(ctx, ownerID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "owner_id", ownerID, "category_id", id)
	return nil
}
