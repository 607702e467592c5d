// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides URL slug generation for catalog entries named in
// any storefront language.
package util

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength is the longest slug Slugify produces.
const MaxSlugLength = 80

// MaxSlugSuffix bounds the numeric suffixes FreeSlug tries.
const MaxSlugSuffix = 100

// ErrNoFreeSlug is returned when every suffix up to MaxSlugSuffix is taken.
var ErrNoFreeSlug = errors.New("no free slug")

var validSlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a product or category name into a slug. Accents are
// stripped, non-Latin scripts are transliterated with unidecode, and every
// run of other characters becomes a single hyphen. "Пицца Маргарита" gives
// "pitstsa-margarita".
func Slugify(name string) string {
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}
	plain = strings.ToLower(unidecode.Unidecode(plain))

	var b strings.Builder
	b.Grow(len(plain))
	gap := false
	for _, r := range plain {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		if r == '\'' || r == '`' {
			continue
		}
		gap = true
	}
	return truncateSlug(b.String())
}

// truncateSlug cuts s to MaxSlugLength, at a hyphen when there is one.
func truncateSlug(s string) string {
	if len(s) <= MaxSlugLength {
		return s
	}
	s = s[:MaxSlugLength]
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "-")
}

// IsValidSlug reports whether s is lowercase ASCII words joined by single
// hyphens.
func IsValidSlug(s string) bool {
	return validSlug.MatchString(s)
}

// SlugWithSuffix returns base for n <= 1 and base-n otherwise.
func SlugWithSuffix(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// SlugTaken reports whether slug is used by a record other than excludeID.
type SlugTaken func(ctx context.Context, slug string, excludeID int64) (bool, error)

// FreeSlug returns the first of base, base-2, base-3 ... that taken
// reports free, starting at suffix from.
func FreeSlug(ctx context.Context, base string, from int, excludeID int64, taken SlugTaken) (string, error) {
	for n := max(from, 1); n <= MaxSlugSuffix; n++ {
		candidate := SlugWithSuffix(base, n)
		used, err := taken(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNoFreeSlug, base)
}
