// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-03-01T09:00:00Z"
	if got, want := Info(), Version+" (abc1234-dirty, 2026-03-01T09:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	if !strings.Contains(Full(), runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, missing platform", Full())
	}

	details := Current()
	if !details.Dirty || details.Commit != "abc1234" || details.Go != runtime.Version() {
		t.Errorf("Current() = %+v", details)
	}

	GitDirty = "false"
	if strings.Contains(Info(), "dirty") {
		t.Errorf("Info() = %q, reports dirty for a clean build", Info())
	}
}
