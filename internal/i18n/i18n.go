// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n holds the server-side UI message catalog: error pages,
// API error messages and the SPA shell fallback text.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/olegiv/storefront/internal/model"
)

//go:embed locales/*.json
var localesFS embed.FS

// FallbackLanguage is used when a message is missing in the requested language.
const FallbackLanguage = model.LangEN

// Catalog maps language code to message key to text. Each locale file is a
// flat JSON object of key to text.
type Catalog struct {
	messages map[string]map[string]string
	printers map[string]*message.Printer
}

// Load reads one locale file per registry language from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		messages: make(map[string]map[string]string),
		printers: make(map[string]*message.Printer),
	}
	for _, lang := range model.LanguageCodes() {
		name := lang + ".json"
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var msgs map[string]string
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		c.messages[lang] = msgs
		c.printers[lang] = message.NewPrinter(language.Make(lang))
	}
	if _, ok := c.messages[FallbackLanguage]; !ok {
		return nil, fmt.Errorf("no %s catalog", FallbackLanguage)
	}
	return c, nil
}

// Lookup returns the text of key in lang, then in the fallback language.
func (c *Catalog) Lookup(lang, key string) (string, bool) {
	if msg, ok := c.messages[strings.ToLower(lang)][key]; ok {
		return msg, true
	}
	msg, ok := c.messages[FallbackLanguage][key]
	return msg, ok
}

// Sprintf formats a message with the number conventions of lang.
func (c *Catalog) Sprintf(lang, format string, args ...any) string {
	p, ok := c.printers[strings.ToLower(lang)]
	if !ok {
		p = c.printers[FallbackLanguage]
	}
	return p.Sprintf(format, args...)
}

// Missing returns the fallback keys that lang does not translate, sorted.
func (c *Catalog) Missing(lang string) []string {
	var out []string
	for key := range c.messages[FallbackLanguage] {
		if _, ok := c.messages[lang][key]; !ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Languages returns the loaded language codes, sorted.
func (c *Catalog) Languages() []string {
	return slices.Sorted(maps.Keys(c.messages))
}

// Count returns the number of messages of lang.
func (c *Catalog) Count(lang string) int {
	return len(c.messages[lang])
}

var active atomic.Pointer[Catalog]

// Init loads the embedded catalog and makes it the one T uses. Keys missing
// from a language are logged; they fall back to English.
func Init(logger *slog.Logger) error {
	sub, err := fs.Sub(localesFS, "locales")
	if err != nil {
		return err
	}
	c, err := Load(sub)
	if err != nil {
		return err
	}
	if logger != nil {
		for _, lang := range c.Languages() {
			if missing := c.Missing(lang); len(missing) > 0 {
				logger.Warn("incomplete message catalog", "language", lang, "missing", missing)
			}
		}
	}
	active.Store(c)
	return nil
}

// T translates key into lang, falling back to English and then to the key.
// Optional args are formatted for lang.
func T(lang, key string, args ...any) string {
	c := active.Load()
	if c == nil {
		return key
	}
	msg, ok := c.Lookup(lang, key)
	if !ok {
		return key
	}
	if len(args) > 0 {
		return c.Sprintf(lang, msg, args...)
	}
	return msg
}

// Languages returns the languages of the active catalog.
func Languages() []string {
	if c := active.Load(); c != nil {
		return c.Languages()
	}
	return nil
}
