// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version describes the running storefront build.
package version

import "fmt"

// DevVersion is reported by builds without injected ldflags.
const DevVersion = "dev"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string // git tag, e.g. "v1.2.3"
	GitCommit string // short commit hash
	BuildTime string // RFC3339
}

// IsDev reports whether the build carries no release version.
func (i Info) IsDev() bool {
	return i.Version == "" || i.Version == DevVersion
}

// String formats the build for -version output and startup logs.
func (i Info) String() string {
	v := i.Version
	if v == "" {
		v = DevVersion
	}
	s := "storefront " + v
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (commit: %s", i.GitCommit)
		if i.BuildTime != "" {
			s += ", built: " + i.BuildTime
		}
		s += ")"
	}
	return s
}
