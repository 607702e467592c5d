// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/theme"
	"github.com/olegiv/storefront/internal/util"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names in errors are the
// JSON names; decimals validate as numbers.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("langcode", func(fl validator.FieldLevel) bool {
			return model.IsKnownLanguage(fl.Field().String())
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return util.IsValidSlug(fl.Field().String())
		})
		_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return model.IsValidOrderStatus(fl.Field().String())
		})
		v.RegisterStructValidation(themeRequestValidation, ThemeRequest{})
		validate = v
	})
	return validate
}

// maxThemeValueLen bounds a single color or radius value.
const maxThemeValueLen = 64

// themeRequestValidation checks every color field of a theme request.
func themeRequestValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(ThemeRequest)
	if !theme.IsSafeValue(req.Radius) {
		sl.ReportError(req.Radius, "radius", "Radius", "cssvalue", "")
	}
	rv := reflect.ValueOf(req.ThemeColors)
	rt := rv.Type()
	for i := range rt.NumField() {
		value := rv.Field(i).String()
		if theme.IsSafeValue(value) && len(value) <= maxThemeValueLen {
			continue
		}
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		sl.ReportError(value, name, rt.Field(i).Name, "cssvalue", "")
	}
}

// validateStruct returns per-field messages, or nil when s is valid.
func validateStruct(s any) map[string]string {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fieldPath(fe)] = fieldMessage(fe)
	}
	return details
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "langcode":
		return "must be a supported language code"
	case "slug":
		return "must contain only lowercase letters, numbers and hyphens"
	case "orderstatus":
		return "must be a valid order status"
	case "cssvalue":
		return "must be a CSS value without ; { } < > quotes or line breaks"
	case "url", "http_url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

func localizedMessage(r *http.Request, key string, args ...any) string {
	return i18n.T(middleware.GetLanguageCode(r), key, args...)
}
