// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for every component that stamps records or
// enforces a deadline. Production code uses Real; tests use Fake.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can
	// cancel the pending call.
	AfterFunc(d time.Duration, f func()) *Timer

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. It returns false if the call already
// ran or was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
