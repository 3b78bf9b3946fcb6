// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package keylock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireRelease(t *testing.T) {
	table := New()

	require.True(t, table.TryAcquire("B0AAA00001", 0))
	assert.True(t, table.Held("B0AAA00001"))

	// second acquire fails immediately
	assert.False(t, table.TryAcquire("B0AAA00001", time.Millisecond))

	// independent key is unaffected
	assert.True(t, table.TryAcquire("B0BBB00002", 0))

	table.Release("B0AAA00001")
	assert.False(t, table.Held("B0AAA00001"))
	assert.True(t, table.TryAcquire("B0AAA00001", 0))
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	table := New()
	table.Release("missing")
	assert.True(t, table.TryAcquire("missing", 0))
}

func TestSingleWinnerUnderContention(t *testing.T) {
	table := New()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if table.TryAcquire("B0AAA00001", time.Millisecond) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
