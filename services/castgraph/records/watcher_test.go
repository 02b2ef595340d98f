// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package records

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileOp_String(t *testing.T) {
	assert.Equal(t, "create", FileOpCreate.String())
	assert.Equal(t, "write", FileOpWrite.String())
	assert.Equal(t, "remove", FileOpRemove.String())
	assert.Equal(t, "rename", FileOpRename.String())
	assert.Equal(t, "unknown", FileOp(42).String())
}

func TestFileWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{}, {}]`), 0o644))

	var calls atomic.Int32
	fired := make(chan FileChange, 4)
	w, err := NewFileWatcher(path, func(_ context.Context, c FileChange) {
		calls.Add(1)
		fired <- c
	}, &WatcherOptions{DebounceWindow: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.True(t, w.IsWatching())

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`x`), 0o644))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`[{}, {}]`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case c := <-fired:
		abs, _ := filepath.Abs(path)
		assert.Equal(t, abs, c.Path)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for debounced change")
	}

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst should collapse into one call")
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	w, err := NewFileWatcher(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}
