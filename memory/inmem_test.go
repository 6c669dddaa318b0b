package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewInMem()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "sess", Entry{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)}))
	}

	t.Run("oldest first", func(t *testing.T) {
		entries, err := s.History(ctx, "sess", 0)
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, "msg 0", entries[0].Content)
		assert.Equal(t, "msg 4", entries[4].Content)
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		entries, err := s.History(ctx, "sess", 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "msg 3", entries[0].Content)
		assert.Equal(t, "msg 4", entries[1].Content)
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		entries, err := s.History(ctx, "ghost", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestInMemClear(t *testing.T) {
	ctx := context.Background()
	s := NewInMem()
	require.NoError(t, s.Append(ctx, "sess", Entry{Content: "hello"}))
	require.NoError(t, s.Clear(ctx, "sess"))

	entries, err := s.History(ctx, "sess", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx, "sess"))
}

func TestInMemSessionEviction(t *testing.T) {
	ctx := context.Background()
	s := NewInMem()
	s.MaxSessions = 2

	require.NoError(t, s.Append(ctx, "a", Entry{Content: "a"}))
	require.NoError(t, s.Append(ctx, "b", Entry{Content: "b"}))

	// touch a so b becomes the eviction candidate
	_, err := s.History(ctx, "a", 0)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, "c", Entry{Content: "c"}))

	entries, err := s.History(ctx, "b", 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "least recently used session should be gone")

	entries, err = s.History(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInMemEntryCap(t *testing.T) {
	ctx := context.Background()
	s := NewInMem()
	s.MaxEntries = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "sess", Entry{Content: fmt.Sprintf("msg %d", i)}))
	}

	entries, err := s.History(ctx, "sess", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "msg 2", entries[0].Content)
}
