// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package photo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListNewestFirst(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, cat.Add(ctx, Record{
			ID:         fmt.Sprintf("id-%d", i),
			Name:       fmt.Sprintf("IMG-%d.jpg", i),
			Path:       "/tmp/x",
			SequenceID: i,
			CapturedAt: fixedNow,
			WrittenAt:  fixedNow.Add(timeStep(i)),
		}))
	}

	n, err := cat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	list, err := cat.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "IMG-4.jpg", list[0].Name)
	assert.Equal(t, "IMG-3.jpg", list[1].Name)
}

func TestCatalog_DuplicateName(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	rec := Record{ID: "a", Name: "IMG.jpg", Path: "/tmp/x", CapturedAt: fixedNow, WrittenAt: fixedNow}
	require.NoError(t, cat.Add(ctx, rec))
	rec.ID = "b"
	assert.Error(t, cat.Add(ctx, rec))
}

func TestCatalog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photos.sqlite")
	ctx := context.Background()

	cat, err := OpenCatalog(ctx, path)
	require.NoError(t, err)
	require.NoError(t, cat.Add(ctx, Record{ID: "a", Name: "IMG.jpg", Path: "/x", CapturedAt: fixedNow, WrittenAt: fixedNow}))
	require.NoError(t, cat.Close())

	cat, err = OpenCatalog(ctx, path)
	require.NoError(t, err)
	defer cat.Close()
	n, err := cat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func timeStep(i int) time.Duration { return time.Duration(i) * time.Second }
