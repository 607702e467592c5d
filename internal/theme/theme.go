// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package theme turns stored theme records into CSS custom properties on
// the document root and keeps the <head> metadata registry.
package theme

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/olegiv/storefront/internal/metrics"
	"github.com/olegiv/storefront/internal/model"
)

// Declaration is a single CSS custom property assignment.
type Declaration struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type colorProperty struct {
	property string
	mirror   string
	get      func(model.ThemeColors) string
}

// colorProperties is ordered; Declarations and the root keep this order.
var colorProperties = []colorProperty{
	{"--color-primary", "--primary", func(c model.ThemeColors) string { return c.PrimaryColor }},
	{"--color-primary-foreground", "--primary-foreground", func(c model.ThemeColors) string { return c.PrimaryForeground }},
	{"--color-secondary", "--secondary", func(c model.ThemeColors) string { return c.SecondaryColor }},
	{"--color-secondary-foreground", "--secondary-foreground", func(c model.ThemeColors) string { return c.SecondaryForeground }},
	{"--color-accent", "--accent", func(c model.ThemeColors) string { return c.AccentColor }},
	{"--color-accent-foreground", "--accent-foreground", func(c model.ThemeColors) string { return c.AccentForeground }},
	{"--color-background", "--background", func(c model.ThemeColors) string { return c.BackgroundColor }},
	{"--color-foreground", "--foreground", func(c model.ThemeColors) string { return c.ForegroundColor }},
	{"--color-card", "--card", func(c model.ThemeColors) string { return c.CardColor }},
	{"--color-card-foreground", "--card-foreground", func(c model.ThemeColors) string { return c.CardForeground }},
	{"--color-muted", "--muted", func(c model.ThemeColors) string { return c.MutedColor }},
	{"--color-muted-foreground", "--muted-foreground", func(c model.ThemeColors) string { return c.MutedForeground }},
	{"--color-border", "--border", func(c model.ThemeColors) string { return c.BorderColor }},
	{"--color-input", "--input", func(c model.ThemeColors) string { return c.InputColor }},
	{"--color-ring", "--ring", func(c model.ThemeColors) string { return c.RingColor }},
	{"--color-destructive", "--destructive", func(c model.ThemeColors) string { return c.DestructiveColor }},
	{"--color-success", "", func(c model.ThemeColors) string { return c.SuccessColor }},
	{"--color-warning", "", func(c model.ThemeColors) string { return c.WarningColor }},
}

// PropertyRadius is the corner radius property.
const PropertyRadius = "--radius"

// Properties lists every custom property the applier may write, in order.
func Properties() []string {
	props := make([]string, 0, 2*len(colorProperties)+1)
	for _, p := range colorProperties {
		props = append(props, p.property)
		if p.mirror != "" {
			props = append(props, p.mirror)
		}
	}
	return append(props, PropertyRadius)
}

// Declarations computes the custom properties for a theme record.
// Hex colors become "H S% L%" triples, other values pass through unchanged,
// and empty or unsafe values are skipped.
func Declarations(t model.Theme) []Declaration {
	var out []Declaration
	for _, p := range colorProperties {
		v := cssValue(p.get(t.ThemeColors))
		if v == "" {
			continue
		}
		out = append(out, Declaration{Property: p.property, Value: v})
		if p.mirror != "" {
			out = append(out, Declaration{Property: p.mirror, Value: v})
		}
	}
	if r := sanitizeValue(t.Radius); r != "" {
		out = append(out, Declaration{Property: PropertyRadius, Value: r})
	}
	return out
}

func cssValue(raw string) string {
	v := sanitizeValue(raw)
	if v == "" {
		return ""
	}
	if hsl, ok := HexToHSL(v); ok {
		return hsl
	}
	return v
}

// sanitizeValue rejects anything that could break out of a declaration.
func sanitizeValue(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.ContainsAny(v, ";{}<>\"\\\n\r") {
		return ""
	}
	return v
}

// IsSafeValue reports whether raw may be stored as a theme value. Empty
// values are safe and mean unset.
func IsSafeValue(raw string) bool {
	return strings.TrimSpace(raw) == "" || sanitizeValue(raw) != ""
}

// HexToHSL converts #rgb or #rrggbb into "H S% L%" with rounded integers.
func HexToHSL(hex string) (string, bool) {
	if !strings.HasPrefix(hex, "#") {
		return "", false
	}
	digits := hex[1:]
	switch len(digits) {
	case 3:
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	case 6:
	default:
		return "", false
	}
	n, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return "", false
	}

	r := float64((n>>16)&0xff) / 255
	g := float64((n>>8)&0xff) / 255
	b := float64(n&0xff) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l := (maxC + minC) / 2

	var h, s float64
	if d := maxC - minC; d != 0 {
		if l > 0.5 {
			s = d / (2 - maxC - minC)
		} else {
			s = d / (maxC + minC)
		}
		switch maxC {
		case r:
			h = (g - b) / d
			if g < b {
				h += 6
			}
		case g:
			h = (b-r)/d + 2
		default:
			h = (r-g)/d + 4
		}
		h *= 60
	}

	return strconv.Itoa(int(math.Round(h))%360) + " " +
		strconv.Itoa(int(math.Round(s*100))) + "% " +
		strconv.Itoa(int(math.Round(l*100))) + "%", true
}

// Root is the document-root style state. Properties are overwritten one at
// a time and never cleared wholesale, so several writers can share it.
type Root struct {
	mu     sync.RWMutex
	values map[string]string
	order  []string
}

// NewRoot creates an empty root.
func NewRoot() *Root {
	return &Root{values: make(map[string]string)}
}

// Set assigns value to property and reports whether anything changed.
func (r *Root) Set(property, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.values[property]
	if ok && old == value {
		return false
	}
	if !ok {
		r.order = append(r.order, property)
	}
	r.values[property] = value
	return true
}

// Get returns the current value of property.
func (r *Root) Get(property string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[property]
	return v, ok
}

// Declarations returns the properties in first-set order.
func (r *Root) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, Declaration{Property: p, Value: r.values[p]})
	}
	return out
}

// Applier writes theme declarations onto a Root.
type Applier struct {
	root *Root
}

// NewApplier creates an Applier with its own root.
func NewApplier() *Applier {
	return &Applier{root: NewRoot()}
}

// Root returns the underlying root state.
func (a *Applier) Root() *Root {
	return a.root
}

// Apply writes the declarations of t and returns how many properties changed.
// Applying the same record twice changes nothing the second time.
func (a *Applier) Apply(t model.Theme) int {
	n := 0
	for _, d := range Declarations(t) {
		if a.root.Set(d.Property, d.Value) {
			n++
		}
	}
	metrics.RecordThemeMutations(n)
	return n
}

// Variables returns the applied properties as a map.
func (a *Applier) Variables() map[string]string {
	decls := a.root.Declarations()
	vars := make(map[string]string, len(decls))
	for _, d := range decls {
		vars[d.Property] = d.Value
	}
	return vars
}

// CSS renders the applied properties as a :root rule.
func (a *Applier) CSS() string {
	var b strings.Builder
	b.WriteString(":root{")
	for _, d := range a.root.Declarations() {
		b.WriteString(d.Property)
		b.WriteByte(':')
		b.WriteString(d.Value)
		b.WriteByte(';')
	}
	b.WriteString("}")
	return b.String()
}
