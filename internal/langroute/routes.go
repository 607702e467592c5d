// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package langroute

import (
	"context"
	"net/http"
	"slices"

	"github.com/olegiv/storefront/internal/model"
)

// Access is the access level required by a route.
type Access int

// Access levels
const (
	Public Access = iota
	Protected
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case AdminOnly:
		return "admin"
	default:
		return "public"
	}
}

// Route is a logical page route written without a language prefix.
type Route struct {
	Pattern string
	Access  Access
	Handler http.Handler
}

// Variant is a concrete registration of a Route for one language.
type Variant struct {
	Pattern  string
	Lang     string
	Prefixed bool
	Route    Route
}

// Expand produces the unprefixed primary-language variant of every route
// plus one prefixed variant per enabled non-primary language. Every variant
// keeps the Access of its route.
func Expand(routes []Route, enabled []string, primary string) []Variant {
	langs := make([]string, 0, len(enabled))
	for _, code := range enabled {
		if code == primary || !model.IsKnownLanguage(code) || slices.Contains(langs, code) {
			continue
		}
		langs = append(langs, code)
	}

	out := make([]Variant, 0, len(routes)*(len(langs)+1))
	for _, rt := range routes {
		out = append(out, Variant{Pattern: Normalize(rt.Pattern), Lang: primary, Route: rt})
		for _, lang := range langs {
			out = append(out, Variant{
				Pattern:  BuildURL(rt.Pattern, lang, primary),
				Lang:     lang,
				Prefixed: true,
				Route:    rt,
			})
		}
	}
	return out
}

// Match describes how the current request was routed.
type Match struct {
	Lang      string
	Primary   string
	Enabled   []string
	CleanPath string
	Prefixed  bool
	Access    Access
}

// URL returns clean in the matched language.
func (m Match) URL(clean string) string {
	return BuildURL(clean, m.Lang, m.Primary)
}

type matchKey struct{}

// WithMatch stores m in ctx.
func WithMatch(ctx context.Context, m Match) context.Context {
	return context.WithValue(ctx, matchKey{}, m)
}

// MatchFrom returns the Match stored in ctx.
func MatchFrom(ctx context.Context) (Match, bool) {
	m, ok := ctx.Value(matchKey{}).(Match)
	return m, ok
}
