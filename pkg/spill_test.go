package pkg

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
	Done  bool
}

func TestSpill(t *testing.T) {
	t.Run("creates its file in dir", func(t *testing.T) {
		dir := t.TempDir()

		spill, err := NewSpill[int](dir)
		require.NoError(t, err)

		assert.Equal(t, dir, filepath.Dir(spill.Path()))
		assert.FileExists(t, spill.Path())

		require.NoError(t, spill.Close())
		assert.NoFileExists(t, spill.Path())
		require.NoError(t, spill.Close(), "close is idempotent")
	})

	t.Run("empty dir uses the temp directory", func(t *testing.T) {
		spill, err := NewSpill[int]("")
		require.NoError(t, err)
		defer spill.Close()

		assert.FileExists(t, spill.Path())
	})

	t.Run("range returns items in order", func(t *testing.T) {
		spill, err := NewSpill[record](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.Append(record{Name: "a", Count: 2, Done: true}))
		require.NoError(t, spill.Append(record{Name: "b"}))
		assert.Equal(t, uint64(2), spill.Len())

		var got []record

		require.NoError(t, spill.Range(func(_ uint64, item record) error {
			got = append(got, item)
			return nil
		}))

		// The second item must not inherit fields of the first.
		assert.Equal(t, []record{{Name: "a", Count: 2, Done: true}, {Name: "b"}}, got)
	})

	t.Run("range stops on callback error", func(t *testing.T) {
		spill, err := NewSpill[int](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		for i := range 5 {
			require.NoError(t, spill.Append(i))
		}

		stop := errors.New("stop")
		seen := 0

		err = spill.Range(func(index uint64, _ int) error {
			seen++
			if index == 2 {
				return stop
			}

			return nil
		})

		require.ErrorIs(t, err, stop)
		assert.Equal(t, 3, seen)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		spill, err := NewSpill[int](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()
				assert.NoError(t, spill.Append(i))
			}()
		}

		wg.Wait()

		sum := 0
		require.NoError(t, spill.Range(func(_ uint64, item int) error {
			sum += item
			return nil
		}))

		assert.Equal(t, uint64(50), spill.Len())
		assert.Equal(t, 49*50/2, sum)
	})

	t.Run("closed spill rejects use", func(t *testing.T) {
		spill, err := NewSpill[int](t.TempDir())
		require.NoError(t, err)
		require.NoError(t, spill.Close())

		assert.Error(t, spill.Append(1))
		assert.Error(t, spill.Range(func(uint64, int) error { return nil }))
	})
}
