package service_test

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tutoralloc/allocator/internal/service"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := service.NewRegistry()

	gone, added := reg.Register("a")
	require.True(t, added)
	require.True(t, reg.IsActive("a"))

	again, added := reg.Register("a")
	require.False(t, added)
	require.Equal(t, gone, again)
	require.Equal(t, 1, reg.Len())

	_, _ = reg.Register("c")
	_, _ = reg.Register("b")
	require.Equal(t, []string{"a", "b", "c"}, reg.List())

	select {
	case <-gone:
		t.Fatal("channel closed before unregister")
	default:
	}

	require.True(t, reg.Unregister("a"))
	require.False(t, reg.Unregister("a"))
	require.False(t, reg.Unregister("unknown"))
	require.False(t, reg.IsActive("a"))
	_, open := <-gone
	require.False(t, open)

	// a new entry under the same id has a fresh channel
	gone2, added := reg.Register("a")
	require.True(t, added)
	select {
	case <-gone2:
		t.Fatal("fresh entry must not be closed")
	default:
	}
}

func TestRegistryConcurrentUnregister(t *testing.T) {
	t.Parallel()
	reg := service.NewRegistry()
	for i := range 10 {
		_, _ = reg.Register(strconv.Itoa(i))
	}

	var removed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for i := range 10 {
				if reg.Unregister(strconv.Itoa(i)) {
					removed.Add(1)
				}
			}
		})
	}
	wg.Wait()
	require.Equal(t, int32(10), removed.Load())
	require.Zero(t, reg.Len())
	require.Empty(t, reg.List())
}
