// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package localize resolves translatable entity fields for a language.
//
// A translatable attribute is stored as a base key holding the primary
// language value plus one sibling key per other language ("name",
// "name_en", "name_he"). Sibling key names come from a table built once
// from the language registry so the read and write paths always agree on
// the naming convention.
package localize

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/olegiv/storefront/internal/model"
)

// ErrUnknownField is returned when a base key has no entry in the key table.
var ErrUnknownField = errors.New("unknown translatable field")

// ErrDefaultLanguage is returned when copying a field onto the default language.
var ErrDefaultLanguage = errors.New("language is the default language")

// Record is anything that exposes stored values by key.
type Record interface {
	Field(key string) string
}

// Keys maps (base, language) pairs to storage keys.
type Keys struct {
	languages []string
	bases     []string
	table     map[string]map[string]string // base -> lang -> sibling key
	reverse   map[string]string            // sibling key -> base
}

// SiblingKey returns the storage key of base for lang using the base_xx convention.
func SiblingKey(base, lang string) string {
	return base + "_" + strings.ToLower(lang)
}

// NewKeys builds the key table for the given languages and base keys.
func NewKeys(languages []model.Language, bases ...string) *Keys {
	k := &Keys{
		table:   make(map[string]map[string]string, len(bases)),
		reverse: make(map[string]string, len(bases)*len(languages)),
	}
	for _, l := range languages {
		k.languages = append(k.languages, l.Code)
	}
	for _, base := range bases {
		if _, dup := k.table[base]; dup {
			continue
		}
		k.bases = append(k.bases, base)
		row := make(map[string]string, len(languages))
		for _, l := range languages {
			key := SiblingKey(base, l.Code)
			row[l.Code] = key
			k.reverse[key] = base
		}
		k.table[base] = row
	}
	return k
}

// Default is the key table for every translatable field of the storefront.
var Default = NewKeys(model.Languages, slices.Concat(
	model.TranslatableSettingKeys,
	model.CategoryFields,
	model.ProductFields,
)...)

// Key returns the sibling storage key for (base, lang).
func (k *Keys) Key(base, lang string) (string, bool) {
	row, ok := k.table[base]
	if !ok {
		return "", false
	}
	key, ok := row[strings.ToLower(lang)]
	return key, ok
}

// Bases returns the registered base keys in registration order.
func (k *Keys) Bases() []string {
	return slices.Clone(k.bases)
}

// Siblings returns the sibling keys of base in registry order, excluding def.
func (k *Keys) Siblings(base, def string) []string {
	row, ok := k.table[base]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(row))
	for _, lang := range k.languages {
		if lang == def {
			continue
		}
		out = append(out, row[lang])
	}
	return out
}

// IsStorageKey reports whether key is a registered base key or sibling key.
func (k *Keys) IsStorageKey(key string) bool {
	if _, ok := k.table[key]; ok {
		return true
	}
	_, ok := k.reverse[key]
	return ok
}

// Resolve returns the value of base for the current language.
//
// For the default language the base value is returned verbatim. Otherwise
// the sibling value wins when it is non-empty after trimming, then the base
// value, then "".
func (k *Keys) Resolve(e Record, base, current, def string) string {
	if e == nil {
		return ""
	}
	if current == def {
		return e.Field(base)
	}
	if key, ok := k.Key(base, current); ok {
		if v := e.Field(key); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return e.Field(base)
}

// Localize resolves several base keys at once.
func (k *Keys) Localize(e Record, bases []string, current, def string) map[string]string {
	out := make(map[string]string, len(bases))
	for _, base := range bases {
		out[base] = k.Resolve(e, base, current, def)
	}
	return out
}

// BuildUpdate returns the storage change for writing value to base in the current language.
// The default language writes the base key; any other language writes only its sibling key.
func (k *Keys) BuildUpdate(base, value, current, def string) (model.Fields, error) {
	if _, ok := k.table[base]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, base)
	}
	if current == def {
		return model.Fields{base: value}, nil
	}
	key, ok := k.Key(base, current)
	if !ok {
		return nil, fmt.Errorf("%w: %s for language %q", ErrUnknownField, base, current)
	}
	return model.Fields{key: value}, nil
}

// CopyFromDefault returns the storage change copying the base value of base into lang's sibling key.
func (k *Keys) CopyFromDefault(e Record, base, lang, def string) (model.Fields, error) {
	if lang == def {
		return nil, ErrDefaultLanguage
	}
	key, ok := k.Key(base, lang)
	if !ok {
		return nil, fmt.Errorf("%w: %s for language %q", ErrUnknownField, base, lang)
	}
	return model.Fields{key: e.Field(base)}, nil
}

// Resolve resolves base with the Default key table.
func Resolve(e Record, base, current, def string) string {
	return Default.Resolve(e, base, current, def)
}

// Localize resolves several base keys with the Default key table.
func Localize(e Record, bases []string, current, def string) map[string]string {
	return Default.Localize(e, bases, current, def)
}

// BuildUpdate builds a storage change with the Default key table.
func BuildUpdate(base, value, current, def string) (model.Fields, error) {
	return Default.BuildUpdate(base, value, current, def)
}

// CopyFromDefault builds a copy-from-default change with the Default key table.
func CopyFromDefault(e Record, base, lang, def string) (model.Fields, error) {
	return Default.CopyFromDefault(e, base, lang, def)
}
