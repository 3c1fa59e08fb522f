// SPDX-License-Identifier: MIT

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStoreGetPutRemove(t *testing.T) {
	store := NewStore()
	now := time.Unix(1700000000, 0)

	_, ok := store.Get("12345")
	assert.False(t, ok)

	sess := New("12345", "https://example.com/v1", now)
	store.Put("12345", sess)

	got, ok := store.Get("12345")
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Len())

	store.Remove("12345")
	_, ok = store.Get("12345")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStorePutReplacesPriorSession(t *testing.T) {
	store := NewStore()
	now := time.Unix(1700000000, 0)

	first := New("12345", "https://example.com/v1", now)
	second := New("12345", "https://example.com/v2", now.Add(time.Minute))
	store.Put("12345", first)
	store.Put("12345", second)

	got, ok := store.Get("12345")
	require.True(t, ok)
	assert.Same(t, second, got, "a new session replaces, never merges")
	assert.Equal(t, 1, store.Len(), "at most one session per conversation id")
}

func TestStoreRemoveMissingIsNoop(t *testing.T) {
	store := NewStore()
	store.Remove("nope")
	assert.Equal(t, 0, store.Len())
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()
	now := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			for j := 0; j < 100; j++ {
				store.Put(id, New(id, "https://example.com", now))
				store.Get(id)
			}
			store.Remove(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}

func TestSerializeOrdersSameConversation(t *testing.T) {
	store := NewStore()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Serialize("12345", func() {
				counter++ // data race unless Serialize provides exclusion
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, counter)
}

func TestSerializeObservesConsistentSnapshot(t *testing.T) {
	store := NewStore()
	now := time.Unix(1700000000, 0)
	store.Put("12345", New("12345", "https://example.com/v1", now))

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Serialize("12345", func() {
			sess, ok := store.Get("12345")
			require.True(t, ok)
			sess.Touch(now.Add(time.Minute))
		})
	}()
	<-done

	sess, _ := store.Get("12345")
	assert.Equal(t, now.Add(time.Minute), sess.LastActivity)
}
