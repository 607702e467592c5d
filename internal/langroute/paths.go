// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package langroute maps URL paths to and from language prefixes and
// serves the language-expanded page route table.
//
// The primary language never carries a prefix: /menu is the primary
// language page and /he/menu is its Hebrew variant. A first segment that
// is not a known language code belongs to the primary language and the
// path is left as is.
package langroute

import (
	"strings"

	"github.com/olegiv/storefront/internal/model"
)

// Normalize collapses repeated slashes and strips a trailing slash. The root stays "/".
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// ExtractLanguage splits a language prefix off path.
// When the first segment is a known language code it returns that code and
// the remainder with its leading slash restored ("/" when empty). Otherwise
// it returns primary and path unchanged.
func ExtractLanguage(path, primary string) (lang, clean string) {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if l, ok := model.LookupLanguage(first); ok && l.Code == first {
		return first, "/" + rest
	}
	return primary, path
}

// BuildURL returns path prefixed for lang. The primary language gets no prefix.
func BuildURL(path, lang, primary string) string {
	if lang == primary {
		return path
	}
	return Normalize("/" + lang + "/" + path)
}

// Switch returns the URL of the page at current (possibly prefixed) in lang.
func Switch(current, lang, primary string) string {
	_, clean := ExtractLanguage(current, primary)
	return BuildURL(Normalize(clean), lang, primary)
}
