// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"bufio"
	"io"
	"strings"
)

// PrivatePaths are never worth crawling, in any language.
var PrivatePaths = []string{
	"/admin",
	"/auth",
	"/cart",
	"/checkout",
	"/orders",
}

// apiPath is disallowed once; the API has no language prefix.
const apiPath = "/api/"

// Robots describes the robots.txt of one storefront.
type Robots struct {
	// SiteURL is the absolute base URL the sitemap is announced under.
	SiteURL string
	// DisallowAll closes the whole site, for staging deployments.
	DisallowAll bool
	// LanguagePrefixes are the non-primary language codes. Private paths
	// are disallowed under each of them too.
	LanguagePrefixes []string
	ExtraDisallow    []string
}

// Disallowed returns every disallowed path in output order.
func (r Robots) Disallowed() []string {
	if r.DisallowAll {
		return []string{"/"}
	}
	private := append(append([]string{}, PrivatePaths...), r.ExtraDisallow...)
	out := make([]string, 0, 1+len(private)*(len(r.LanguagePrefixes)+1))
	out = append(out, apiPath)
	out = append(out, private...)
	for _, lang := range r.LanguagePrefixes {
		for _, p := range private {
			out = append(out, "/"+lang+p)
		}
	}
	return out
}

// WriteTo writes the robots.txt body to w.
func (r Robots) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	bw.WriteString("User-agent: *\n")
	for _, p := range r.Disallowed() {
		bw.WriteString("Disallow: " + p + "\n")
	}
	if !r.DisallowAll {
		bw.WriteString("Allow: /\n")
		if r.SiteURL != "" {
			bw.WriteString("\nSitemap: " + strings.TrimSuffix(r.SiteURL, "/") + SitemapPath + "\n")
		}
	}
	err := bw.Flush()
	return cw.n, err
}

func (r Robots) String() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
