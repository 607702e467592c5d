// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
)

// errFieldValidation aborts a text transaction whose change failed validation.
var errFieldValidation = errors.New("field validation failed")

// LocalizedUpdateRequest writes translatable values in one language.
// Values are keyed by base key ("name", "storeName").
type LocalizedUpdateRequest struct {
	Lang   string            `json:"lang" validate:"required,langcode"`
	Values map[string]string `json:"values" validate:"required,min=1"`
}

// CopyFromDefaultRequest copies primary-language values into lang.
// An empty Fields list copies every translatable field of the entity.
type CopyFromDefaultRequest struct {
	Lang   string   `json:"lang" validate:"required,langcode"`
	Fields []string `json:"fields"`
}

// applyLocalized returns the storage change for writing values in lang.
// Unknown base keys are reported per field.
func applyLocalized(bases []string, values map[string]string, lang, def string) (model.Fields, map[string]string) {
	change := model.Fields{}
	var errs map[string]string
	for base, value := range values {
		if !slices.Contains(bases, base) {
			if errs == nil {
				errs = map[string]string{}
			}
			errs["values."+base] = "is not a translatable field"
			continue
		}
		f, err := localize.BuildUpdate(base, value, lang, def)
		if err != nil {
			if errs == nil {
				errs = map[string]string{}
			}
			errs["values."+base] = err.Error()
			continue
		}
		change.Merge(f)
	}
	return change, errs
}

// copyLocalized returns the storage change copying fields of e from def into lang.
func copyLocalized(e localize.Record, bases, fields []string, lang, def string) (model.Fields, error) {
	if len(fields) == 0 {
		fields = bases
	}
	change := model.Fields{}
	for _, base := range fields {
		if !slices.Contains(bases, base) {
			return nil, fmt.Errorf("%w: %s", localize.ErrUnknownField, base)
		}
		f, err := localize.CopyFromDefault(e, base, lang, def)
		if err != nil {
			return nil, err
		}
		change.Merge(f)
	}
	return change, nil
}

// validTextKeys reports the keys of text that are not storage keys of bases.
func validTextKeys(text map[string]string, bases []string, field string) map[string]string {
	var errs map[string]string
	for key := range text {
		if isStorageKeyOf(key, bases) {
			continue
		}
		if errs == nil {
			errs = map[string]string{}
		}
		errs[field+"."+key] = "is not a translatable field"
	}
	return errs
}

func isStorageKeyOf(key string, bases []string) bool {
	for _, base := range bases {
		if key == base || slices.Contains(localize.Default.Siblings(base, ""), key) {
			return true
		}
	}
	return false
}

// writeLocalizedMutationError writes the response for the client errors of a
// text change and reports whether it did.
func writeLocalizedMutationError(w http.ResponseWriter, r *http.Request, err error, fieldErrs map[string]string) bool {
	switch {
	case errors.Is(err, errFieldValidation):
		writeValidationError(w, r, fieldErrs)
	case errors.Is(err, localize.ErrDefaultLanguage):
		writeError(w, r, http.StatusBadRequest, middleware.CodeValidation, "error.default_language")
	case errors.Is(err, localize.ErrUnknownField):
		writeValidationError(w, r, map[string]string{"fields": err.Error()})
	default:
		return false
	}
	return true
}
