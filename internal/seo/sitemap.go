// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seo builds robots.txt and the multilingual sitemap.
package seo

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/storefront/internal/langroute"
)

// Well-known paths.
const (
	SitemapPath = "/sitemap.xml"
	RobotsPath  = "/robots.txt"
)

// XML namespaces of the sitemap document.
const (
	XMLNamespace      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	XHTMLNamespace    = "http://www.w3.org/1999/xhtml"
	hreflangXDefault  = "x-default"
	alternateRelation = "alternate"
)

// ChangeFreq represents the change frequency of a URL.
type ChangeFreq string

// Valid change frequency values.
const (
	ChangeFreqDaily  ChangeFreq = "daily"
	ChangeFreqWeekly ChangeFreq = "weekly"
)

// SitemapURL is one <url> entry. Every language variant of a page gets its
// own entry listing all variants as alternates.
type SitemapURL struct {
	Loc        string          `xml:"loc"`
	LastMod    string          `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq      `xml:"changefreq,omitempty"`
	Priority   string          `xml:"priority,omitempty"`
	Alternates []AlternateLink `xml:"xhtml:link"`
}

// AlternateLink points at a language variant of the page.
type AlternateLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// Sitemap represents the complete sitemap document.
type Sitemap struct {
	XMLName    xml.Name     `xml:"urlset"`
	XMLNS      string       `xml:"xmlns,attr"`
	XMLNSXHTML string       `xml:"xmlns:xhtml,attr"`
	URLs       []SitemapURL `xml:"url"`
}

// SitemapBuilder builds the sitemap for a set of enabled languages.
type SitemapBuilder struct {
	siteURL string
	primary string
	langs   []string
	urls    []SitemapURL
}

// NewSitemapBuilder creates a builder. langs must include primary.
func NewSitemapBuilder(siteURL, primary string, langs []string) *SitemapBuilder {
	return &SitemapBuilder{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		primary: primary,
		langs:   langs,
	}
}

// AddHomepage adds the home page in every language.
func (b *SitemapBuilder) AddHomepage() {
	b.add("/", time.Time{}, ChangeFreqDaily, "1.0")
}

// AddCategory adds a category page.
func (b *SitemapBuilder) AddCategory(id int64, updatedAt time.Time) {
	b.add("/category/"+strconv.FormatInt(id, 10), updatedAt, ChangeFreqDaily, "0.8")
}

// AddProduct adds a product page.
func (b *SitemapBuilder) AddProduct(id int64, updatedAt time.Time) {
	b.add("/product/"+strconv.FormatInt(id, 10), updatedAt, ChangeFreqWeekly, "0.6")
}

func (b *SitemapBuilder) add(clean string, updatedAt time.Time, freq ChangeFreq, priority string) {
	alternates := make([]AlternateLink, 0, len(b.langs)+1)
	for _, lang := range b.langs {
		alternates = append(alternates, AlternateLink{
			Rel:      alternateRelation,
			Hreflang: lang,
			Href:     b.url(clean, lang),
		})
	}
	alternates = append(alternates, AlternateLink{
		Rel:      alternateRelation,
		Hreflang: hreflangXDefault,
		Href:     b.url(clean, b.primary),
	})

	var lastMod string
	if !updatedAt.IsZero() {
		lastMod = updatedAt.UTC().Format("2006-01-02")
	}
	for _, lang := range b.langs {
		b.urls = append(b.urls, SitemapURL{
			Loc:        b.url(clean, lang),
			LastMod:    lastMod,
			ChangeFreq: freq,
			Priority:   priority,
			Alternates: alternates,
		})
	}
}

func (b *SitemapBuilder) url(clean, lang string) string {
	return b.siteURL + langroute.BuildURL(clean, lang, b.primary)
}

// Len returns the number of <url> entries.
func (b *SitemapBuilder) Len() int {
	return len(b.urls)
}

// Build generates the sitemap XML.
func (b *SitemapBuilder) Build() ([]byte, error) {
	sitemap := Sitemap{
		XMLNS:      XMLNamespace,
		XMLNSXHTML: XHTMLNamespace,
		URLs:       b.urls,
	}

	output := []byte(xml.Header)
	xmlBytes, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(output, xmlBytes...), nil
}
