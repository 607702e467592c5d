// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"html/template"
	"maps"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
)

// SettingsResponse is the store settings plus the text resolved for the
// request language.
type SettingsResponse struct {
	model.StoreSettings
	Language   string            `json:"language"`
	Direction  string            `json:"direction"`
	Resolved   map[string]string `json:"resolved"`
	FooterHTML template.HTML     `json:"footerHtml"`
	Languages  []model.Language  `json:"languages"`
}

// UpdateSettingsRequest replaces the store settings.
type UpdateSettingsRequest struct {
	PrimaryLanguage  string            `json:"primaryLanguage" validate:"required,langcode"`
	EnabledLanguages []string          `json:"enabledLanguages" validate:"required,min=1,dive,langcode"`
	Text             map[string]string `json:"text"`
	WorkingHours     map[string]string `json:"workingHours" validate:"omitempty,dive,max=200"`

	Phone        string `json:"phone" validate:"max=32"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email"`
	Currency     string `json:"currency" validate:"required,len=3"`

	DeliveryFee           decimal.Decimal `json:"deliveryFee" validate:"gte=0"`
	FreeDeliveryThreshold decimal.Decimal `json:"freeDeliveryThreshold" validate:"gte=0"`
	MinOrderAmount        decimal.Decimal `json:"minOrderAmount" validate:"gte=0"`
	DeliveryEnabled       bool            `json:"deliveryEnabled"`
	PickupEnabled         bool            `json:"pickupEnabled"`

	WhatsAppEnabled bool   `json:"whatsappEnabled"`
	WhatsAppPhone   string `json:"whatsappPhone" validate:"required_if=WhatsAppEnabled true,max=32"`

	FacebookPixelID string `json:"facebookPixelId" validate:"omitempty,numeric,max=32"`
	YandexMetrikaID string `json:"yandexMetrikaId" validate:"omitempty,numeric,max=32"`

	LogoURL        string `json:"logoUrl" validate:"max=2048"`
	FaviconURL     string `json:"faviconUrl" validate:"max=2048"`
	CustomHeadHTML string `json:"customHeadHtml" validate:"max=20000"`
}

func (req UpdateSettingsRequest) toSettings() model.StoreSettings {
	text := model.Fields{}
	maps.Copy(text, req.Text)
	hours := map[string]string{}
	maps.Copy(hours, req.WorkingHours)
	return model.StoreSettings{
		PrimaryLanguage:       req.PrimaryLanguage,
		EnabledLanguages:      req.EnabledLanguages,
		Text:                  text,
		WorkingHours:          hours,
		Phone:                 req.Phone,
		ContactEmail:          req.ContactEmail,
		Currency:              req.Currency,
		DeliveryFee:           req.DeliveryFee,
		FreeDeliveryThreshold: req.FreeDeliveryThreshold,
		MinOrderAmount:        req.MinOrderAmount,
		DeliveryEnabled:       req.DeliveryEnabled,
		PickupEnabled:         req.PickupEnabled,
		WhatsAppEnabled:       req.WhatsAppEnabled,
		WhatsAppPhone:         req.WhatsAppPhone,
		FacebookPixelID:       req.FacebookPixelID,
		YandexMetrikaID:       req.YandexMetrikaID,
		LogoURL:               req.LogoURL,
		FaviconURL:            req.FaviconURL,
		CustomHeadHTML:        req.CustomHeadHTML,
	}
}

// newSettingsResponse resolves the translatable text of s for lang.
func newSettingsResponse(s model.StoreSettings, lang string) SettingsResponse {
	primary := s.Primary()
	if !s.IsEnabled(lang) {
		lang = primary
	}
	resolved := localize.Localize(s.Text, model.TranslatableSettingKeys, lang, primary)
	if resolved[model.SettingStoreName] == "" {
		resolved[model.SettingStoreName] = model.PlaceholderStoreName
	}

	langs := make([]model.Language, 0, len(s.Enabled()))
	for _, code := range s.Enabled() {
		if l, ok := model.LookupLanguage(code); ok {
			langs = append(langs, l)
		}
	}

	return SettingsResponse{
		StoreSettings: s,
		Language:      lang,
		Direction:     model.DirectionOf(lang),
		Resolved:      resolved,
		FooterHTML:    settings.RenderMarkdown(resolved[model.SettingFooterText]),
		Languages:     langs,
	}
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Get(r.Context())
	WriteSuccess(w, newSettingsResponse(s, middleware.GetLanguageCode(r)), nil)
}

// UpdateSettings handles PUT /api/admin/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateSettings(req); errs != nil {
		writeValidationError(w, r, errs)
		return
	}

	if err := h.queries.UpsertStoreSettings(r.Context(), req.toSettings(), h.now().UTC()); err != nil {
		h.writeInternalError(w, r, "failed to save store settings", err)
		return
	}
	s := h.refreshSettings(r.Context(), r)
	WriteSuccess(w, newSettingsResponse(s, middleware.GetLanguageCode(r)), nil)
}

// UpdateSettingsText handles PUT /api/admin/settings/text. Values are
// written to the base keys for the primary language and to the sibling
// keys otherwise.
func (h *Handler) UpdateSettingsText(w http.ResponseWriter, r *http.Request) {
	var req LocalizedUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutateSettingsText(w, r, func(s model.StoreSettings) (model.Fields, map[string]string, error) {
		change, errs := applyLocalized(model.TranslatableSettingKeys, req.Values, req.Lang, s.Primary())
		return change, errs, nil
	})
}

// CopySettingsText handles POST /api/admin/settings/text/copy.
func (h *Handler) CopySettingsText(w http.ResponseWriter, r *http.Request) {
	var req CopyFromDefaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutateSettingsText(w, r, func(s model.StoreSettings) (model.Fields, map[string]string, error) {
		change, err := copyLocalized(s.Text, model.TranslatableSettingKeys, req.Fields, req.Lang, s.Primary())
		return change, nil, err
	})
}

// mutateSettingsText applies a text change computed from the stored settings.
func (h *Handler) mutateSettingsText(w http.ResponseWriter, r *http.Request,
	compute func(model.StoreSettings) (model.Fields, map[string]string, error)) {
	var fieldErrs map[string]string
	err := store.InTx(r.Context(), h.db, func(q *store.Queries) error {
		s, err := q.GetStoreSettings(r.Context())
		if err != nil {
			return err
		}
		change, errs, err := compute(s)
		if err != nil {
			return err
		}
		if errs != nil {
			fieldErrs = errs
			return errFieldValidation
		}
		text := s.Text.Clone()
		text.Merge(change)
		s.Text = text
		return q.UpsertStoreSettings(r.Context(), s, h.now().UTC())
	})
	if writeLocalizedMutationError(w, r, err, fieldErrs) {
		return
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to update store settings text", err)
		return
	}

	s := h.refreshSettings(r.Context(), r)
	WriteSuccess(w, newSettingsResponse(s, middleware.GetLanguageCode(r)), nil)
}

// refreshSettings invalidates the cache and waits for the saved value, so
// listeners (router, head) see it before the response is written.
func (h *Handler) refreshSettings(ctx context.Context, r *http.Request) model.StoreSettings {
	s := h.settings.Refresh(ctx)
	h.logger.Info("store settings updated",
		logging.AttrCategory, model.EventCategorySettings,
		logging.AttrUserID, middleware.GetUserID(r),
		"primary", s.Primary())
	return s
}

func validateSettings(req UpdateSettingsRequest) map[string]string {
	errs := validTextKeys(req.Text, model.TranslatableSettingKeys, "text")
	if !req.DeliveryEnabled && !req.PickupEnabled {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["deliveryEnabled"] = "delivery or pickup must be enabled"
	}
	return errs
}
