// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Translatable settings text keys.
const (
	SettingStoreName        = "storeName"
	SettingStoreDescription = "storeDescription"
	SettingWelcomeTitle     = "welcomeTitle"
	SettingWelcomeSubtitle  = "welcomeSubtitle"
	SettingAddress          = "address"
	SettingFooterText       = "footerText"
	SettingSEOTitle         = "seoTitle"
	SettingSEODescription   = "seoDescription"
)

// TranslatableSettingKeys lists the base keys of StoreSettings.Text.
var TranslatableSettingKeys = []string{
	SettingStoreName,
	SettingStoreDescription,
	SettingWelcomeTitle,
	SettingWelcomeSubtitle,
	SettingAddress,
	SettingFooterText,
	SettingSEOTitle,
	SettingSEODescription,
}

// PlaceholderStoreName is shown when no settings could be loaded.
const PlaceholderStoreName = "Store"

// StoreSettings is the singleton store configuration.
type StoreSettings struct {
	PrimaryLanguage  string            `json:"primaryLanguage"`
	EnabledLanguages []string          `json:"enabledLanguages"`
	Text             Fields            `json:"text"`
	WorkingHours     map[string]string `json:"workingHours"`

	Phone        string `json:"phone"`
	ContactEmail string `json:"contactEmail"`
	Currency     string `json:"currency"`

	DeliveryFee           decimal.Decimal `json:"deliveryFee"`
	FreeDeliveryThreshold decimal.Decimal `json:"freeDeliveryThreshold"`
	MinOrderAmount        decimal.Decimal `json:"minOrderAmount"`
	DeliveryEnabled       bool            `json:"deliveryEnabled"`
	PickupEnabled         bool            `json:"pickupEnabled"`

	WhatsAppEnabled bool   `json:"whatsappEnabled"`
	WhatsAppPhone   string `json:"whatsappPhone"`

	FacebookPixelID string `json:"facebookPixelId"`
	YandexMetrikaID string `json:"yandexMetrikaId"`

	LogoURL        string `json:"logoUrl"`
	FaviconURL     string `json:"faviconUrl"`
	CustomHeadHTML string `json:"customHeadHtml"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultStoreSettings returns the minimal record served when settings are unavailable.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		PrimaryLanguage:  DefaultLanguage,
		EnabledLanguages: LanguageCodes(),
		Text: Fields{
			SettingStoreName:        PlaceholderStoreName,
			SettingStoreDescription: "",
		},
		WorkingHours:    map[string]string{},
		Currency:        "ILS",
		DeliveryEnabled: true,
		PickupEnabled:   true,
	}
}

// Primary returns the configured primary language, falling back to DefaultLanguage.
func (s StoreSettings) Primary() string {
	if IsKnownLanguage(s.PrimaryLanguage) {
		return s.PrimaryLanguage
	}
	return DefaultLanguage
}

// Enabled returns the enabled known languages, always including the primary one.
func (s StoreSettings) Enabled() []string {
	primary := s.Primary()
	out := []string{primary}
	for _, code := range s.EnabledLanguages {
		if code != primary && IsKnownLanguage(code) && !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	return out
}

// IsEnabled reports whether code is an enabled language.
func (s StoreSettings) IsEnabled(code string) bool {
	return slices.Contains(s.Enabled(), code)
}

// DeliveryFeeFor returns the delivery fee for an order subtotal.
func (s StoreSettings) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if s.FreeDeliveryThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return s.DeliveryFee
}
