// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// ThemeColors holds the configurable color tokens of a theme.
// Values are hex colors (#rgb, #rrggbb) or any CSS color syntax; empty means unset.
type ThemeColors struct {
	PrimaryColor        string `json:"primaryColor,omitempty"`
	PrimaryForeground   string `json:"primaryForeground,omitempty"`
	SecondaryColor      string `json:"secondaryColor,omitempty"`
	SecondaryForeground string `json:"secondaryForeground,omitempty"`
	AccentColor         string `json:"accentColor,omitempty"`
	AccentForeground    string `json:"accentForeground,omitempty"`
	BackgroundColor     string `json:"backgroundColor,omitempty"`
	ForegroundColor     string `json:"foregroundColor,omitempty"`
	CardColor           string `json:"cardColor,omitempty"`
	CardForeground      string `json:"cardForeground,omitempty"`
	MutedColor          string `json:"mutedColor,omitempty"`
	MutedForeground     string `json:"mutedForeground,omitempty"`
	BorderColor         string `json:"borderColor,omitempty"`
	InputColor          string `json:"inputColor,omitempty"`
	RingColor           string `json:"ringColor,omitempty"`
	DestructiveColor    string `json:"destructiveColor,omitempty"`
	SuccessColor        string `json:"successColor,omitempty"`
	WarningColor        string `json:"warningColor,omitempty"`
}

// Theme is a stored color theme. Exactly one theme is active at a time.
type Theme struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
	ThemeColors
	Radius    string    `json:"radius,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultTheme returns the theme seeded on first run.
func DefaultTheme() Theme {
	return Theme{
		Name:     "Default",
		IsActive: true,
		ThemeColors: ThemeColors{
			PrimaryColor:        "#f97316",
			PrimaryForeground:   "#ffffff",
			SecondaryColor:      "#f1f5f9",
			SecondaryForeground: "#0f172a",
			AccentColor:         "#fde68a",
			AccentForeground:    "#0f172a",
			BackgroundColor:     "#ffffff",
			ForegroundColor:     "#0f172a",
			CardColor:           "#ffffff",
			CardForeground:      "#0f172a",
			MutedColor:          "#f1f5f9",
			MutedForeground:     "#64748b",
			BorderColor:         "#e2e8f0",
			InputColor:          "#e2e8f0",
			RingColor:           "#f97316",
			DestructiveColor:    "#ef4444",
			SuccessColor:        "#22c55e",
			WarningColor:        "#f59e0b",
		},
		Radius: "0.5rem",
	}
}
