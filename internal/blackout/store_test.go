package blackout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreIsBlackoutInclusive(t *testing.T) {
	base := time.Date(2025, 3, 12, 8, 30, 0, 0, time.UTC)
	store := NewStore()
	store.Refresh([]Window{{Start: base.Add(-5 * time.Minute), End: base.Add(5 * time.Minute), Label: "CPI m/m"}})

	assert.False(t, store.IsBlackout(base.Add(-5*time.Minute-time.Second)))
	assert.True(t, store.IsBlackout(base.Add(-5*time.Minute)))
	assert.True(t, store.IsBlackout(base))
	assert.True(t, store.IsBlackout(base.Add(5*time.Minute)))
	assert.False(t, store.IsBlackout(base.Add(5*time.Minute+time.Second)))

	w, ok := store.Active(base)
	require.True(t, ok)
	assert.Equal(t, "CPI m/m", w.Label)
}

func TestStoreEmptyMeansNoBlackouts(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.Windows())
	assert.False(t, store.IsBlackout(time.Now()))

	now := time.Now()
	store.Refresh([]Window{{Start: now.Add(-time.Minute), End: now.Add(time.Minute)}})
	assert.True(t, store.IsBlackout(now))

	store.Refresh(nil)
	assert.False(t, store.IsBlackout(now))
}

func TestStoreRefreshDoesNotAliasCallerSlice(t *testing.T) {
	now := time.Now()
	input := []Window{{Start: now.Add(-time.Minute), End: now.Add(time.Minute), Label: "FOMC"}}
	store := NewStore()
	store.Refresh(input)

	input[0].Label = "mutated"
	input[0].End = now.Add(-time.Hour)

	got := store.Windows()
	require.Len(t, got, 1)
	assert.Equal(t, "FOMC", got[0].Label)
	assert.True(t, store.IsBlackout(now))
}

func TestStoreConcurrentRefreshAndRead(t *testing.T) {
	now := time.Now()
	a := []Window{{Start: now.Add(-time.Minute), End: now.Add(time.Minute), Label: "a"}, {Start: now.Add(time.Hour), End: now.Add(2 * time.Hour), Label: "a"}}
	b := []Window{{Start: now.Add(-time.Minute), End: now.Add(time.Minute), Label: "b"}, {Start: now.Add(time.Hour), End: now.Add(2 * time.Hour), Label: "b"}}
	store := NewStore()
	store.Refresh(a)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if (i+j)%2 == 0 {
					store.Refresh(a)
				} else {
					store.Refresh(b)
				}
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				ws := store.Windows()
				if len(ws) != 2 || ws[0].Label != ws[1].Label {
					t.Errorf("observed a partial window list: %+v", ws)
					return
				}
			}
		}()
	}
	wg.Wait()
}
