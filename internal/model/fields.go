// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Fields holds the translatable attributes of an entity keyed by storage key:
// base keys ("name") carry the primary-language value, sibling keys
// ("name_en") carry translations.
type Fields map[string]string

// Field returns the value stored under key, or "" when absent.
func (f Fields) Field(key string) string {
	return f[key]
}

// SetField stores value under key.
func (f Fields) SetField(key, value string) {
	f[key] = value
}

// Merge copies every entry of other into f.
func (f Fields) Merge(other Fields) {
	for k, v := range other {
		f[k] = v
	}
}

// Clone returns a copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer so Fields can be stored in a TEXT column.
func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *Fields) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*f = Fields{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("fields: unsupported scan type %T", src)
	}
	out := Fields{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
	}
	*f = out
	return nil
}
