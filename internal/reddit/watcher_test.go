package reddit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/store"
)

func TestWatcher_PrimeFiresOncePerListing(t *testing.T) {
	w := &Watcher{primed: make(map[string]bool)}

	assert.True(t, w.prime("posts:golang"))
	assert.False(t, w.prime("posts:golang"))
	assert.True(t, w.prime("comments:golang"))
	assert.False(t, w.prime("comments:golang"))
}

func TestWatcher_MarkSeen(t *testing.T) {
	ctx := context.Background()
	w := &Watcher{states: store.NewMemory(), primed: make(map[string]bool)}

	skip, err := w.markSeen(ctx, "t3_abc")
	require.NoError(t, err)
	assert.False(t, skip)

	skip, err = w.markSeen(ctx, "t3_abc")
	require.NoError(t, err)
	assert.True(t, skip)
}
