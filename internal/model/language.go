// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// Language text directions
const (
	DirectionLTR = "ltr"
	DirectionRTL = "rtl"
)

// Language codes supported by the storefront.
const (
	LangRU = "ru"
	LangEN = "en"
	LangHE = "he"
	LangAR = "ar"
)

// DefaultLanguage is the primary language used when the store has not configured one.
const DefaultLanguage = LangRU

// Language describes a storefront language.
type Language struct {
	Code       string `json:"code"`        // ISO 639-1: ru, en, he, ar
	Name       string `json:"name"`        // Russian, English, Hebrew, Arabic
	NativeName string `json:"native_name"` // Русский, English, עברית, العربية
	Flag       string `json:"flag"`
	Direction  string `json:"direction"` // ltr, rtl
}

// IsRTL returns true if the language is right-to-left.
func (l Language) IsRTL() bool {
	return l.Direction == DirectionRTL
}

// Languages is the registry of supported languages in switcher order.
var Languages = []Language{
	{Code: LangRU, Name: "Russian", NativeName: "Русский", Flag: "🇷🇺", Direction: DirectionLTR},
	{Code: LangEN, Name: "English", NativeName: "English", Flag: "🇬🇧", Direction: DirectionLTR},
	{Code: LangHE, Name: "Hebrew", NativeName: "עברית", Flag: "🇮🇱", Direction: DirectionRTL},
	{Code: LangAR, Name: "Arabic", NativeName: "العربية", Flag: "🇸🇦", Direction: DirectionRTL},
}

var languagesByCode = func() map[string]Language {
	m := make(map[string]Language, len(Languages))
	for _, l := range Languages {
		m[l.Code] = l
	}
	return m
}()

// LookupLanguage returns the registry entry for a code (case-insensitive).
func LookupLanguage(code string) (Language, bool) {
	l, ok := languagesByCode[strings.ToLower(code)]
	return l, ok
}

// IsKnownLanguage reports whether code is in the registry.
func IsKnownLanguage(code string) bool {
	_, ok := LookupLanguage(code)
	return ok
}

// LanguageCodes returns all registry codes in switcher order.
func LanguageCodes() []string {
	codes := make([]string, 0, len(Languages))
	for _, l := range Languages {
		codes = append(codes, l.Code)
	}
	return codes
}

// DirectionOf returns the text direction for a code, defaulting to ltr.
func DirectionOf(code string) string {
	if l, ok := LookupLanguage(code); ok {
		return l.Direction
	}
	return DirectionLTR
}
