// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package theme

import (
	"html"
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/model"
)

// Fixed head registry keys. Title and description are stored per language
// as "title:xx" and "description:xx".
const (
	HeadFavicon           = "favicon"
	HeadAnalyticsFacebook = "analytics:facebook"
	HeadAnalyticsYandex   = "analytics:yandex"
	HeadCustom            = "custom"
	headTitle             = "title"
	headDescription       = "description"
)

var counterIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// Head is the <head> metadata registry. Each setter owns its keys and
// overwrites them in place; nothing clears the registry as a whole.
type Head struct {
	mu      sync.RWMutex
	entries map[string]template.HTML
	policy  *bluemonday.Policy
}

// NewHead creates an empty registry.
func NewHead() *Head {
	return &Head{
		entries: make(map[string]template.HTML),
		policy:  headPolicy(),
	}
}

// headPolicy admits only meta and link tags in custom head HTML.
func headPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("meta", "link")
	p.AllowAttrs("name", "content", "property", "charset", "http-equiv").OnElements("meta")
	p.AllowAttrs("rel", "href", "type", "sizes", "hreflang", "media", "crossorigin").OnElements("link")
	p.AllowURLSchemes("https", "http")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return p
}

func (h *Head) set(key string, value template.HTML) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if value == "" {
		delete(h.entries, key)
		return
	}
	h.entries[key] = value
}

// Get returns the fragment stored under key.
func (h *Head) Get(key string) template.HTML {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[key]
}

// HasTitle reports whether a title is registered for lang.
func (h *Head) HasTitle(lang string) bool {
	return h.Get(headTitle+":"+lang) != ""
}

// SetFavicon sets the favicon link.
func (h *Head) SetFavicon(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		h.set(HeadFavicon, "")
		return
	}
	h.set(HeadFavicon, template.HTML(`<link rel="icon" href="`+html.EscapeString(url)+`">`))
}

// SetSEO sets the title and meta description for one language.
func (h *Head) SetSEO(lang, title, description string) {
	var titleHTML, descHTML template.HTML
	if title = strings.TrimSpace(title); title != "" {
		titleHTML = template.HTML("<title>" + html.EscapeString(title) + "</title>")
	}
	if description = strings.TrimSpace(description); description != "" {
		descHTML = template.HTML(`<meta name="description" content="` + html.EscapeString(description) + `">`)
	}
	h.set(headTitle+":"+lang, titleHTML)
	h.set(headDescription+":"+lang, descHTML)
}

// SetAnalytics sets the Facebook Pixel and Yandex Metrika snippets.
// IDs that are not plain digits are ignored.
func (h *Head) SetAnalytics(facebookPixelID, yandexMetrikaID string) {
	h.set(HeadAnalyticsFacebook, facebookSnippet(strings.TrimSpace(facebookPixelID)))
	h.set(HeadAnalyticsYandex, yandexSnippet(strings.TrimSpace(yandexMetrikaID)))
}

// SetCustomHTML stores sanitized custom head markup.
func (h *Head) SetCustomHTML(raw string) {
	h.set(HeadCustom, template.HTML(strings.TrimSpace(h.policy.Sanitize(raw))))
}

// ApplySettings refreshes every entry derived from store settings.
func (h *Head) ApplySettings(s model.StoreSettings) {
	h.SetFavicon(s.FaviconURL)
	primary := s.Primary()
	for _, lang := range s.Enabled() {
		title := localize.Resolve(s.Text, model.SettingSEOTitle, lang, primary)
		if title == "" {
			title = localize.Resolve(s.Text, model.SettingStoreName, lang, primary)
		}
		desc := localize.Resolve(s.Text, model.SettingSEODescription, lang, primary)
		if desc == "" {
			desc = localize.Resolve(s.Text, model.SettingStoreDescription, lang, primary)
		}
		h.SetSEO(lang, title, desc)
	}
	h.SetAnalytics(s.FacebookPixelID, s.YandexMetrikaID)
	h.SetCustomHTML(s.CustomHeadHTML)
}

// Render returns the head fragments for lang in a stable order.
func (h *Head) Render(lang string) template.HTML {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	for _, key := range []string{
		headTitle + ":" + lang,
		headDescription + ":" + lang,
		HeadFavicon,
		HeadCustom,
		HeadAnalyticsFacebook,
		HeadAnalyticsYandex,
	} {
		if v := h.entries[key]; v != "" {
			b.WriteString(string(v))
			b.WriteByte('\n')
		}
	}
	return template.HTML(b.String())
}

func facebookSnippet(id string) template.HTML {
	if !counterIDPattern.MatchString(id) {
		return ""
	}
	return template.HTML(`<script>!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?` +
		`n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;n.push=n;n.loaded=!0;` +
		`n.version='2.0';n.queue=[];t=b.createElement(e);t.async=!0;t.src=v;s=b.getElementsByTagName(e)[0];` +
		`s.parentNode.insertBefore(t,s)}(window,document,'script','https://connect.facebook.net/en_US/fbevents.js');` +
		`fbq('init','` + id + `');fbq('track','PageView');</script>`)
}

func yandexSnippet(id string) template.HTML {
	if !counterIDPattern.MatchString(id) {
		return ""
	}
	return template.HTML(`<script>(function(m,e,t,r,i,k,a){m[i]=m[i]||function(){(m[i].a=m[i].a||[]).push(arguments)};` +
		`m[i].l=1*new Date();k=e.createElement(t),a=e.getElementsByTagName(t)[0],k.async=1,k.src=r,a.parentNode.insertBefore(k,a)})` +
		`(window,document,"script","https://mc.yandex.ru/metrika/tag.js","ym");` +
		`ym(` + id + `,"init",{clickmap:true,trackLinks:true,accurateTrackBounce:true});</script>`)
}
