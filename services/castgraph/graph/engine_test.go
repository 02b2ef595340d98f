// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

func TestEngine_NoSnapshot(t *testing.T) {
	e := NewEngine(nil)

	assert.Nil(t, e.Current())
	assert.Zero(t, e.Version())

	_, err := e.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestEngine_RebuildPublishes(t *testing.T) {
	var (
		calls    int
		previous *Graph
		current  *Graph
	)
	e := NewEngine(NewBuilder(), WithSwapHook(func(_ context.Context, prev, cur *Graph) {
		calls++
		previous, current = prev, cur
	}))

	g, err := e.Rebuild(context.Background(), StaticDataset(testDataset()))
	require.NoError(t, err)

	assert.Same(t, g, e.Current())
	assert.Equal(t, uint64(1), e.Version())
	assert.Equal(t, uint64(1), g.Version())
	assert.Equal(t, 1, calls)
	assert.Nil(t, previous)
	assert.Same(t, g, current)
}

func TestEngine_OldSnapshotSurvivesSwap(t *testing.T) {
	store := records.NewStore(testDataset())
	e := NewEngine(NewBuilder())

	first, err := e.Rebuild(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, store.Version(), first.SourceVersion())

	require.NoError(t, store.DeleteActor("Kim Basinger"))

	var swapped []*Graph
	e.OnSwap(func(_ context.Context, prev, _ *Graph) {
		swapped = append(swapped, prev)
	})

	second, err := e.Rebuild(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), e.Version())
	assert.Equal(t, store.Version(), second.SourceVersion())
	assert.Equal(t, []*Graph{first}, swapped)

	// The holder of the first snapshot still sees Kim Basinger.
	_, ok := first.Actor("Kim Basinger")
	assert.True(t, ok)
	assert.Equal(t, 1, first.Distance(mustActor(t, first, "Bruce Willis"), "Kim Basinger"))

	_, ok = second.Actor("Kim Basinger")
	assert.False(t, ok)
	assert.Equal(t, 4, second.ActorCount())
}

func TestEngine_FailedRebuildKeepsSnapshot(t *testing.T) {
	e := NewEngine(NewBuilder())

	good, err := e.Rebuild(context.Background(), StaticDataset(testDataset()))
	require.NoError(t, err)

	bad := testDataset()
	a := bad.Actors["Bruce Willis"]
	a.Age = -5
	bad.Actors["Bruce Willis"] = a

	g, err := e.Rebuild(context.Background(), StaticDataset(bad))
	assert.ErrorIs(t, err, records.ErrMalformedRecord)
	assert.Nil(t, g)
	assert.Same(t, good, e.Current())
	assert.Equal(t, uint64(1), e.Version())
}

func TestEngine_ConcurrentRebuildAndRead(t *testing.T) {
	store := records.NewStore(syntheticDataset(40, 30))
	e := NewEngine(NewBuilder(WithWorkers(4)))

	_, err := e.Rebuild(context.Background(), store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.Rebuild(context.Background(), store); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			g := e.Current()
			if g == nil || !g.TraverseAll().AllVisited() {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.GreaterOrEqual(t, e.Version(), uint64(2))
	assert.LessOrEqual(t, e.Version(), uint64(9))
}

func mustActor(t *testing.T, g *Graph, name string) *ActorVertex {
	t.Helper()
	a, ok := g.Actor(name)
	require.True(t, ok, "actor %q", name)
	return a
}
