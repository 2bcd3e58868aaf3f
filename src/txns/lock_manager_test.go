package txns

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

var (
	pageA = common.PageIdentity{FileID: 1, PageID: 0}
	pageB = common.PageIdentity{FileID: 1, PageID: 1}
)

func TestSharedLocksAreCompatible(t *testing.T) {
	l := NewLockManager()

	require.True(t, l.Acquire(1, pageA, PageLockShared))
	require.True(t, l.Acquire(2, pageA, PageLockShared))
	require.False(t, l.Acquire(3, pageA, PageLockExclusive))

	assert.True(t, l.Holds(pageA, 1))
	assert.True(t, l.Holds(pageA, 2))
	assert.False(t, l.Holds(pageA, 3))
	assert.Len(t, l.Holders(pageA), 2)
}

func TestExclusiveExcludesOthers(t *testing.T) {
	l := NewLockManager()

	require.True(t, l.Acquire(1, pageA, PageLockExclusive))
	require.False(t, l.Acquire(2, pageA, PageLockShared))
	require.False(t, l.Acquire(2, pageA, PageLockExclusive))

	// other pages are unaffected
	require.True(t, l.Acquire(2, pageB, PageLockExclusive))
}

func TestReacquireIsIdempotent(t *testing.T) {
	l := NewLockManager()

	require.True(t, l.Acquire(1, pageA, PageLockExclusive))
	require.True(t, l.Acquire(1, pageA, PageLockExclusive))
	require.True(t, l.Acquire(1, pageA, PageLockShared))

	assert.Equal(t, PageLockExclusive, l.Mode(pageA, 1).Unwrap())
	assert.Len(t, l.Holders(pageA), 1)
}

func TestUpgrade(t *testing.T) {
	t.Run("sole holder", func(t *testing.T) {
		l := NewLockManager()

		require.True(t, l.Acquire(1, pageA, PageLockShared))
		require.True(t, l.Acquire(1, pageA, PageLockExclusive))

		holders := l.Holders(pageA)
		require.Len(t, holders, 1)
		assert.Equal(t, PageLockExclusive, holders[1])
	})

	t.Run("shared with another txn", func(t *testing.T) {
		l := NewLockManager()

		require.True(t, l.Acquire(1, pageA, PageLockShared))
		require.True(t, l.Acquire(2, pageA, PageLockShared))
		require.False(t, l.Acquire(1, pageA, PageLockExclusive))

		assert.Equal(t, PageLockShared, l.Mode(pageA, 1).Unwrap())

		require.NoError(t, l.Release(pageA, 2))
		require.True(t, l.Acquire(1, pageA, PageLockExclusive))
	})
}

func TestRelease(t *testing.T) {
	l := NewLockManager()

	require.ErrorIs(t, l.Release(pageA, 1), ErrNotLocked)

	require.True(t, l.Acquire(1, pageA, PageLockExclusive))
	require.NoError(t, l.Release(pageA, 1))
	assert.False(t, l.Holds(pageA, 1))
	assert.True(t, l.Mode(pageA, 1).IsNone())
	assert.Empty(t, l.LockedPages(1))

	require.True(t, l.Acquire(2, pageA, PageLockExclusive))
}

func TestReleaseAll(t *testing.T) {
	l := NewLockManager()

	require.True(t, l.Acquire(1, pageA, PageLockShared))
	require.True(t, l.Acquire(1, pageB, PageLockExclusive))
	require.True(t, l.Acquire(2, pageA, PageLockShared))

	released := l.ReleaseAll(1)
	assert.ElementsMatch(t, []common.PageIdentity{pageA, pageB}, released)

	assert.False(t, l.Holds(pageA, 1))
	assert.False(t, l.Holds(pageB, 1))
	assert.True(t, l.Holds(pageA, 2))

	assert.Empty(t, l.ReleaseAll(1))
}

func TestReleasedChannelIsClosedOnRelease(t *testing.T) {
	l := NewLockManager()
	require.True(t, l.Acquire(1, pageA, PageLockExclusive))

	ch := l.Released()
	select {
	case <-ch:
		t.Fatal("channel closed before any release")
	default:
	}

	require.NoError(t, l.Release(pageA, 1))

	select {
	case <-ch:
	default:
		t.Fatal("channel is still open after release")
	}

	// a fresh channel is handed out after the broadcast
	select {
	case <-l.Released():
		t.Fatal("new channel must be open")
	default:
	}
}

func TestConcurrentExclusiveNeverShared(t *testing.T) {
	l := NewLockManager()

	const workers = 16
	const rounds = 200

	var mu sync.Mutex
	inside := 0

	var wg sync.WaitGroup
	for w := range workers {
		txnID := common.TxnID(w + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				for {
					released := l.Released()
					if l.Acquire(txnID, pageA, PageLockExclusive) {
						break
					}
					<-released
				}

				mu.Lock()
				inside++
				assert.Equal(t, 1, inside)
				inside--
				mu.Unlock()

				assert.NoError(t, l.Release(pageA, txnID))
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, l.Holders(pageA))
}

func TestModeRelations(t *testing.T) {
	assert.True(t, PageLockShared.Compatible(PageLockShared))
	assert.False(t, PageLockShared.Compatible(PageLockExclusive))
	assert.False(t, PageLockExclusive.Compatible(PageLockShared))

	assert.True(t, PageLockShared.WeakerOrEqual(PageLockExclusive))
	assert.True(t, PageLockShared.WeakerOrEqual(PageLockShared))
	assert.False(t, PageLockExclusive.WeakerOrEqual(PageLockShared))

	assert.Equal(t, "SHARED", PageLockShared.String())
	assert.Equal(t, "EXCLUSIVE", PageLockExclusive.String())
}

func TestIDGenerator(t *testing.T) {
	var g IDGenerator

	first := g.Next()
	assert.NotEqual(t, common.NilTxnID, first)
	assert.Equal(t, first+1, g.Next())
}
