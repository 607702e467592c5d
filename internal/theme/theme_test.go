// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package theme

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/model"
)

func TestHexToHSL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"#ffffff", "0 0% 100%", true},
		{"#fff", "0 0% 100%", true},
		{"#000000", "0 0% 0%", true},
		{"#ff0000", "0 100% 50%", true},
		{"#00f", "240 100% 50%", true},
		{"#00ff00", "120 100% 50%", true},
		{"#f97316", "25 95% 53%", true},
		{"#FF0000", "0 100% 50%", true},
		{"red", "", false},
		{"#ffff", "", false},
		{"#gggggg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := HexToHSL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSafeValue(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"#fff", true},
		{"hsl(220 14% 96%)", true},
		{"0.75rem", true},
		{"red;}body{display:none", false},
		{"</style><script>", false},
		{"\"quoted\"", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafeValue(tt.value))
		})
	}
}

func TestDeclarations(t *testing.T) {
	rec := model.Theme{
		ThemeColors: model.ThemeColors{
			PrimaryColor:    "#ff0000",
			BackgroundColor: "hsl(0 0% 100%)",
			CardColor:       "",
			SuccessColor:    "#00ff00",
			WarningColor:    "red;}body{display:none",
		},
		Radius: "0.75rem",
	}

	got := Declarations(rec)
	want := []Declaration{
		{"--color-primary", "0 100% 50%"},
		{"--primary", "0 100% 50%"},
		{"--color-background", "hsl(0 0% 100%)"},
		{"--background", "hsl(0 0% 100%)"},
		{"--color-success", "120 100% 50%"},
		{"--radius", "0.75rem"},
	}
	assert.Equal(t, want, got)
}

func TestDeclarationsPureFunction(t *testing.T) {
	rec := model.DefaultTheme()
	assert.Equal(t, Declarations(rec), Declarations(rec))
	assert.Len(t, Declarations(rec), len(Properties()))
}

func TestApplyIsIdempotent(t *testing.T) {
	a := NewApplier()
	rec := model.DefaultTheme()

	first := a.Apply(rec)
	assert.Equal(t, len(Declarations(rec)), first)
	assert.Equal(t, 0, a.Apply(rec), "second apply of the same record mutates nothing")

	rec.PrimaryColor = "#000"
	assert.Equal(t, 2, a.Apply(rec), "primary and its mirror change")
}

func TestApplyNeverClearsRoot(t *testing.T) {
	a := NewApplier()
	a.Apply(model.Theme{ThemeColors: model.ThemeColors{PrimaryColor: "#fff", CardColor: "#000"}})
	a.Apply(model.Theme{ThemeColors: model.ThemeColors{PrimaryColor: "#000"}})

	card, ok := a.Root().Get("--color-card")
	require.True(t, ok)
	assert.Equal(t, "0 0% 0%", card)
	primary, _ := a.Root().Get("--primary")
	assert.Equal(t, "0 0% 0%", primary)
}

func TestRootSet(t *testing.T) {
	r := NewRoot()
	assert.True(t, r.Set("--x", "1"))
	assert.False(t, r.Set("--x", "1"))
	assert.True(t, r.Set("--x", "2"))
	assert.True(t, r.Set("--y", "3"))
	assert.Equal(t, []Declaration{{"--x", "2"}, {"--y", "3"}}, r.Declarations())
}

func TestCSS(t *testing.T) {
	a := NewApplier()
	assert.Equal(t, ":root{}", a.CSS())

	a.Apply(model.Theme{ThemeColors: model.ThemeColors{PrimaryColor: "#fff"}, Radius: "4px"})
	assert.Equal(t, ":root{--color-primary:0 0% 100%;--primary:0 0% 100%;--radius:4px;}", a.CSS())
	assert.Equal(t, "4px", a.Variables()["--radius"])
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestActiveThemeReappliesOnChange(t *testing.T) {
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var current atomic.Value
	current.Store(model.Theme{ID: 1, UpdatedAt: stamp, ThemeColors: model.ThemeColors{PrimaryColor: "#fff"}})
	var calls atomic.Int32

	c := &clock{t: stamp}
	active := NewActiveTheme(LoaderFunc(func(ctx context.Context) (model.Theme, error) {
		calls.Add(1)
		return current.Load().(model.Theme), nil
	}), NewApplier(), WithActiveClock(c.now), WithActiveLogger(quiet))

	ctx := context.Background()
	assert.Equal(t, int64(1), active.Get(ctx).ID)
	v, _ := active.Applier().Root().Get("--primary")
	assert.Equal(t, "0 0% 100%", v)

	active.Get(ctx)
	assert.Equal(t, int32(1), calls.Load(), "cached within ttl")

	current.Store(model.Theme{ID: 2, UpdatedAt: stamp, ThemeColors: model.ThemeColors{PrimaryColor: "#000"}})
	active.Invalidate()
	assert.Equal(t, int64(2), active.Get(ctx).ID)
	v, _ = active.Applier().Root().Get("--primary")
	assert.Equal(t, "0 0% 0%", v)

	c.t = c.t.Add(2 * DefaultActiveTTL)
	active.Get(ctx)
	assert.Equal(t, int32(3), calls.Load())
}

func TestActiveThemeFallsBackToDefault(t *testing.T) {
	active := NewActiveTheme(LoaderFunc(func(ctx context.Context) (model.Theme, error) {
		return model.Theme{}, errors.New("no such table: themes")
	}), NewApplier(), WithActiveLogger(quiet))

	got := active.Get(context.Background())
	assert.Equal(t, model.DefaultTheme().PrimaryColor, got.PrimaryColor)
	assert.True(t, strings.Contains(active.Applier().CSS(), "--color-primary:25 95% 53%"))
}

func TestActiveThemeKeepsPreviousOnFailure(t *testing.T) {
	var fail atomic.Bool
	active := NewActiveTheme(LoaderFunc(func(ctx context.Context) (model.Theme, error) {
		if fail.Load() {
			return model.Theme{}, errors.New("locked")
		}
		return model.Theme{ID: 7, Name: "Dark"}, nil
	}), NewApplier(), WithActiveLogger(quiet))

	ctx := context.Background()
	require.Equal(t, "Dark", active.Get(ctx).Name)
	fail.Store(true)
	active.Invalidate()
	assert.Equal(t, "Dark", active.Get(ctx).Name)
}
