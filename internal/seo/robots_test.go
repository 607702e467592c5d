// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsDefault(t *testing.T) {
	body := Robots{SiteURL: "https://example.com"}.String()

	assert.True(t, strings.HasPrefix(body, "User-agent: *\nDisallow: /api/\n"))
	for _, path := range PrivatePaths {
		assert.Contains(t, body, "Disallow: "+path+"\n")
	}
	assert.Contains(t, body, "Allow: /\n")
	assert.True(t, strings.HasSuffix(body, "\nSitemap: https://example.com/sitemap.xml\n"))
}

func TestRobotsLanguagePrefixes(t *testing.T) {
	r := Robots{LanguagePrefixes: []string{"he", "en"}, ExtraDisallow: []string{"/private"}}
	body := r.String()

	for _, path := range []string{"/he/admin", "/he/checkout", "/en/orders", "/en/private", "/private"} {
		assert.Contains(t, body, "Disallow: "+path+"\n")
	}
	assert.NotContains(t, body, "/he/api")
	assert.Len(t, r.Disallowed(), 1+3*(len(PrivatePaths)+1))
	assert.NotContains(t, body, "Sitemap:")
}

func TestRobotsDisallowAll(t *testing.T) {
	r := Robots{SiteURL: "https://staging.example.com", DisallowAll: true, LanguagePrefixes: []string{"he"}}
	assert.Equal(t, "User-agent: *\nDisallow: /\n", r.String())
}

func TestRobotsSiteURLTrailingSlash(t *testing.T) {
	assert.Contains(t, Robots{SiteURL: "https://example.com/"}.String(),
		"Sitemap: https://example.com/sitemap.xml\n")
}

func TestRobotsWriteToCounts(t *testing.T) {
	var sb strings.Builder
	n, err := Robots{SiteURL: "https://example.com"}.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)
}
