// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the page templates and the built frontend assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var templates embed.FS

//go:embed all:static/dist
var static embed.FS

// StaticPrefix is the URL path the built assets are served under.
const StaticPrefix = "/static/dist/"

// Templates returns the template tree rooted at its top directory.
func Templates() fs.FS {
	return mustSub(templates, "templates")
}

// Static returns the built assets rooted at static/dist.
func Static() fs.FS {
	return mustSub(static, "static/dist")
}

// mustSub panics only when the embed patterns above change.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
