// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp records (metadata rows, checkpoints) or bound
// an operation by a deadline (CAS copy timeouts) take a Clock in their
// config struct instead of calling the time package. Production wiring
// passes Real(). Tests pass Fake() and drive deadlines explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go store.StoreReader(ctx, slowReader)
//	fake.WaitForTimers(1)       // copy timeout registered
//	fake.Advance(5 * time.Minute) // fire it
package clock
