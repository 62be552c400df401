// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package build carries the version information injected at link time.
package build

import (
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var (
	// Injected by build script
	Version = "unknown-dev"
	Host    = "unknown" // Set by build script
	User    = "unknown" // Set by build script
	Stamp   = "0"       // Set by build script

	// Set by init()
	Date        time.Time
	LongVersion string

	// Set by Go build tags
	Tags []string

	allowedVersionExp = regexp.MustCompile(`^v\d+\.\d+\.\d+(-[a-z0-9]+)*(\.\d+)*(\+\d+-g[0-9a-f]+)?(-[^\s]+)?$`)
)

func init() {
	if Version != "unknown-dev" {
		// If not a generic dev build, version string should come from git describe
		if !allowedVersionExp.MatchString(Version) {
			log.Fatalf("Invalid version string %q;\n\tdoes not match regexp %v", Version, allowedVersionExp)
		}
	}
	setBuildData()
}

func setBuildData() {
	stamp, _ := strconv.Atoi(Stamp)
	Date = time.Unix(int64(stamp), 0)
	LongVersion = longVersion("kqfm", Version, User, Host, Date, Tags)
}

func longVersion(name, version, user, host string, date time.Time, tags []string) string {
	v := fmt.Sprintf(`%s %s (%s %s-%s) %s@%s %s`, name, version, runtime.Version(), runtime.GOOS, runtime.GOARCH, user, host, date.UTC().Format("2006-01-02 15:04:05 MST"))
	if len(tags) > 0 {
		v = fmt.Sprintf("%s [%s]", v, strings.Join(tags, ", "))
	}
	return v
}
