// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Margherita", "margherita"},
		{"Hello, World!", "hello-world"},
		{"  Four   Cheese  ", "four-cheese"},
		{"Pizza - 30 cm", "pizza-30-cm"},
		{"Café résumé", "cafe-resume"},
		{"Über München", "uber-munchen"},
		{"Пицца Маргарита", "pitstsa-margarita"},
		{"Суши сет 24", "sushi-set-24"},
		{"Борщ с пампушками", "borshch-s-pampushkami"},
		{"Chef's special", "chefs-special"},
		{"half.price", "half-price"},
		{"!@#$%^&*()", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, IsValidSlug(got), got)
			}
		})
	}
}

func TestSlugifyTruncates(t *testing.T) {
	name := strings.Repeat("pepperoni ", 20)
	got := Slugify(name)

	assert.LessOrEqual(t, len(got), MaxSlugLength)
	assert.True(t, IsValidSlug(got), got)
	assert.True(t, strings.HasSuffix(got, "pepperoni"), got)

	long := Slugify(strings.Repeat("x", 200))
	assert.Len(t, long, MaxSlugLength)
}

func TestIsValidSlug(t *testing.T) {
	for _, s := range []string{"pizza", "pizza-30", "a", "2-for-1"} {
		assert.True(t, IsValidSlug(s), s)
	}
	for _, s := range []string{"", "-pizza", "pizza-", "pi--zza", "Pizza", "pizza margherita", "пицца", "pizza_30"} {
		assert.False(t, IsValidSlug(s), s)
	}
}

func TestSlugWithSuffix(t *testing.T) {
	assert.Equal(t, "soup", SlugWithSuffix("soup", 0))
	assert.Equal(t, "soup", SlugWithSuffix("soup", 1))
	assert.Equal(t, "soup-2", SlugWithSuffix("soup", 2))
	assert.Equal(t, "soup-15", SlugWithSuffix("soup", 15))
}

func TestFreeSlug(t *testing.T) {
	used := map[string]bool{"soup": true, "soup-2": true}
	var excluded []int64
	taken := func(_ context.Context, slug string, excludeID int64) (bool, error) {
		excluded = append(excluded, excludeID)
		return used[slug], nil
	}

	got, err := FreeSlug(t.Context(), "soup", 1, 7, taken)
	require.NoError(t, err)
	assert.Equal(t, "soup-3", got)
	assert.Equal(t, []int64{7, 7, 7}, excluded)

	got, err = FreeSlug(t.Context(), "salad", 1, 0, taken)
	require.NoError(t, err)
	assert.Equal(t, "salad", got)

	got, err = FreeSlug(t.Context(), "salad", 2, 0, taken)
	require.NoError(t, err)
	assert.Equal(t, "salad-2", got)
}

func TestFreeSlugErrors(t *testing.T) {
	always := func(context.Context, string, int64) (bool, error) { return true, nil }
	_, err := FreeSlug(t.Context(), "soup", 1, 0, always)
	assert.ErrorIs(t, err, ErrNoFreeSlug)

	dbErr := errors.New("db down")
	_, err = FreeSlug(t.Context(), "soup", 1, 0, func(context.Context, string, int64) (bool, error) {
		return false, dbErr
	})
	assert.ErrorIs(t, err, dbErr)
}
