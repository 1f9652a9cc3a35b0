package services

import (
	"context"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewCategoryService(memory.New())

	food, err := svc.Create(ctx, owner, core.CategoryInput{Name: "  Food ", ImageRef: "img/food.png"})
	require.NoError(t, err)
	assert.Equal(t, "Food", food.Name)

	_, err = svc.Create(ctx, owner, core.CategoryInput{Name: "Food"})
	assert.ErrorIs(t, err, core.ErrDuplicateLabel)

	_, err = svc.Create(ctx, owner, core.CategoryInput{Name: "Fo"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Create(ctx, owner, core.CategoryInput{Name: "A name that is far too long"})
	assert.ErrorIs(t, err, core.ErrValidation)

	rent, err := svc.Create(ctx, owner, core.CategoryInput{Name: "Rent"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, rent.ID, core.CategoryInput{Name: "Food"})
	assert.ErrorIs(t, err, core.ErrDuplicateLabel)

	renamed, err := svc.Update(ctx, owner, food.ID, core.CategoryInput{Name: "Groceries"})
	require.NoError(t, err)
	assert.Equal(t, "img/food.png", renamed.ImageRef, "empty image keeps the old one")

	_, err = svc.Update(ctx, "user-2", food.ID, core.CategoryInput{Name: "Mine now"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Delete(ctx, owner, rent.ID))
	assert.ErrorIs(t, svc.Delete(ctx, owner, rent.ID), core.ErrNotFound)
}
