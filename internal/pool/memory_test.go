package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func TestMemory_CRUD(t *testing.T) {
	m := NewMemory(testutil.Entity("b", "SELECT 2"))

	require.NoError(t, m.Put(testutil.Entity("A", "SELECT 1")))
	assert.Equal(t, 2, m.Len())

	got, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
	assert.False(t, got.UpdatedAt.IsZero())

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	require.NoError(t, m.Delete("B"))
	_, err = m.Get("b")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
	assert.ErrorIs(t, m.Delete("b"), core.ErrEntityNotFound)

	assert.Error(t, m.Put(&core.Entity{}))
}

func TestMemory_CopiesOnTheWayInAndOut(t *testing.T) {
	e := testutil.Entity("a", "SELECT 1", "x")
	m := NewMemory()
	require.NoError(t, m.Put(e))

	e.Body = "changed"
	e.Dependencies[0] = "changed"

	got, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got.Body)
	assert.Equal(t, []string{"x"}, got.Dependencies)

	got.Body = "changed again"
	again, _ := m.Get("a")
	assert.Equal(t, "SELECT 1", again.Body)
}

func TestMemory_ReplaceAllAndClear(t *testing.T) {
	m := NewMemory(testutil.Entity("old", "SELECT 0"))
	require.NoError(t, m.ReplaceAll([]*core.Entity{
		testutil.Entity("a", "SELECT 1"),
		testutil.Entity("b", "SELECT 2"),
	}))

	_, err := m.Get("old")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
	assert.Equal(t, 2, m.Len())

	assert.Error(t, m.ReplaceAll([]*core.Entity{nil}))
	assert.Equal(t, 2, m.Len(), "failed replace leaves the pool untouched")

	require.NoError(t, m.Clear())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			_ = m.Put(testutil.Entity(name, "SELECT 1"))
			_, _ = m.List()
			_, _ = m.Get(name)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, m.Len())
}
