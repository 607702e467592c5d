// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ErrInvalidID is returned by ParseIDParam for missing or non-positive IDs.
var ErrInvalidID = errors.New("invalid id")

// ParseIDParam parses the {id} URL parameter.
func ParseIDParam(r *http.Request) (int64, error) {
	return ParseInt64URLParam(r, "id")
}

// ParseInt64URLParam parses a positive int64 URL parameter.
func ParseInt64URLParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// ParsePageParam parses the "page" query parameter, defaulting to 1.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, "page", 1, 1, 0)
}

// ParsePerPageParam parses the "per_page" query parameter.
// Values outside [1, maxPerPage] fall back to defaultPerPage.
func ParsePerPageParam(r *http.Request, defaultPerPage, maxPerPage int) int {
	return ParseIntParam(r, "per_page", defaultPerPage, 1, maxPerPage)
}

// ParseIntParam parses an integer query parameter from the request.
// Returns defaultVal if the parameter is missing, empty, or invalid.
// If minVal > 0, values below minVal return defaultVal.
// If maxVal > 0, values above maxVal return defaultVal.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if minVal > 0 && val < minVal {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return defaultVal
	}
	return val
}

// ParseInt64Query parses an optional int64 query parameter; 0 means absent.
func ParseInt64Query(r *http.Request, param string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(param), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseBoolQuery reports whether a query parameter is "1" or "true".
func ParseBoolQuery(r *http.Request, param string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(param))
	return err == nil && v
}
