package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

func TestStore_LookupMiss(t *testing.T) {
	s := NewStore(1024, 256, nil)

	_, ok := s.Lookup("missing")
	assert.False(t, ok)
}

func TestStore_InsertThenLookup(t *testing.T) {
	s := NewStore(1024, 256, nil)

	require.NoError(t, s.Insert("fp1", []byte("hello")))

	got, ok := s.Lookup("fp1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
}

func TestStore_InsertRejectsOversizeElement(t *testing.T) {
	s := NewStore(1024, 4, nil)

	err := s.Insert("fp1", []byte("too big"))
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindTooLarge, kind)

	stats := s.Stats()
	assert.Equal(t, 0, stats.Entries)
}

func TestStore_ReplaceUpdatesByteSize(t *testing.T) {
	s := NewStore(1024, 256, nil)

	require.NoError(t, s.Insert("fp1", []byte("short")))
	require.NoError(t, s.Insert("fp1", []byte("a much longer payload")))

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, len("a much longer payload"), stats.ByteSize)
}

func TestStore_Idempotence(t *testing.T) {
	s := NewStore(1024, 256, nil)

	require.NoError(t, s.Insert("fp1", []byte("hello")))
	before := s.Stats()

	require.NoError(t, s.Insert("fp1", []byte("hello")))
	after := s.Stats()

	assert.Equal(t, before, after)
}

func TestStore_LRUEviction(t *testing.T) {
	var evicted []string
	s := NewStore(30, 30, func(fp string, bytes int) {
		evicted = append(evicted, fp)
	})

	require.NoError(t, s.Insert("a", make([]byte, 10)))
	require.NoError(t, s.Insert("b", make([]byte, 10)))
	require.NoError(t, s.Insert("c", make([]byte, 10)))

	// touch "a" so it is no longer the least-recently-used
	_, ok := s.Lookup("a")
	require.True(t, ok)

	// inserting another 10 bytes forces one eviction; "b" is now oldest
	require.NoError(t, s.Insert("d", make([]byte, 10)))

	require.Len(t, evicted, 1)
	assert.Equal(t, "b", evicted[0])

	_, ok = s.Lookup("b")
	assert.False(t, ok)
	_, ok = s.Lookup("a")
	assert.True(t, ok)
}

func TestStore_ByteSizeInvariant(t *testing.T) {
	s := NewStore(100, 50, nil)

	for i := 0; i < 20; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		require.NoError(t, s.Insert(fp, make([]byte, 10)))

		stats := s.Stats()
		assert.LessOrEqual(t, stats.ByteSize, int64(100))
	}
}

func TestStore_Drain(t *testing.T) {
	s := NewStore(1024, 256, nil)

	require.NoError(t, s.Insert("fp1", []byte("hello")))
	require.NoError(t, s.Insert("fp2", []byte("world")))

	s.Drain()

	stats := s.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.EqualValues(t, 0, stats.ByteSize)

	_, ok := s.Lookup("fp1")
	assert.False(t, ok)
}

func BenchmarkStore_InsertEvict(b *testing.B) {
	s := NewStore(1<<20, 4096, nil)
	payload := make([]byte, 2048)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		_ = s.Insert(fp, payload)
	}
}

func BenchmarkStore_Lookup(b *testing.B) {
	s := NewStore(1<<20, 4096, nil)
	_ = s.Insert("fp1", []byte("hello world"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Lookup("fp1")
	}
}
