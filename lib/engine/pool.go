// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "sync"

// pool runs tasks on at most size goroutines. Go blocks while the
// pool is full.
type pool struct {
	semaphore chan struct{}
	waitGroup sync.WaitGroup
}

func newPool(size int) *pool {
	return &pool{semaphore: make(chan struct{}, max(size, 1))}
}

func (p *pool) Go(task func()) {
	p.semaphore <- struct{}{}
	p.waitGroup.Add(1)
	go func() {
		defer func() {
			<-p.semaphore
			p.waitGroup.Done()
		}()
		task()
	}()
}

// Wait blocks until every started task has returned.
func (p *pool) Wait() {
	p.waitGroup.Wait()
}
