// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client IPs to ISO country codes with a MaxMind
// GeoLite2-Country database, for tagging orders in the event log.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// CountryLocal is returned for private and loopback addresses.
const CountryLocal = "LOCAL"

// ErrNoDatabase is returned by Open when the database file is missing.
var ErrNoDatabase = errors.New("geoip database not found")

var privateCIDRs = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",  // IPv6 unique local
	"fe80::/10", // IPv6 link-local
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, cidr, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}

// Lookup maps IPs to countries. The zero database (empty path) only
// recognizes local addresses.
type Lookup struct {
	mu      sync.RWMutex
	db      *maxminddb.Reader
	path    string
	modTime time.Time
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path. An empty path yields a Lookup without a
// database.
func Open(path string) (*Lookup, error) {
	g := &Lookup{path: path}
	if path == "" {
		return g, nil
	}
	if err := g.load(); err != nil {
		return g, err
	}
	return g, nil
}

// load opens the database unless the file is unchanged. Caller holds mu.
func (g *Lookup) load() error {
	info, err := os.Stat(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoDatabase, g.path)
		}
		return fmt.Errorf("stat geoip database: %w", err)
	}
	if g.db != nil && info.ModTime().Equal(g.modTime) {
		return nil
	}

	db, err := maxminddb.Open(g.path)
	if err != nil {
		return fmt.Errorf("opening geoip database: %w", err)
	}
	if g.db != nil {
		_ = g.db.Close()
	}
	g.db = db
	g.modTime = info.ModTime()
	return nil
}

// Reload reopens the database when the file was replaced. A failed reload
// keeps the previous database.
func (g *Lookup) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == "" {
		return nil
	}
	return g.load()
}

// Country returns the ISO code for ip, CountryLocal for private addresses,
// or "" when unknown.
func (g *Lookup) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || isPrivate(parsed) {
		return CountryLocal
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return ""
	}
	var rec countryRecord
	if err := g.db.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Enabled reports whether a database is loaded.
func (g *Lookup) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db != nil
}

// Close releases the database.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

func isPrivate(ip net.IP) bool {
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
