package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentDecisionsWrapsAround(t *testing.T) {
	r := NewRecentDecisions(3)
	got, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	for i := 1; i <= 5; i++ {
		r.Append(Decision{BarTime: fmt.Sprintf("t%d", i)})
	}
	assert.Equal(t, 3, r.Len())

	got, err = r.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "t5", got[0].BarTime)
	assert.Equal(t, "t3", got[2].BarTime)

	got, _ = r.Recent(context.Background(), 2)
	assert.Equal(t, []string{"t5", "t4"}, []string{got[0].BarTime, got[1].BarTime})
}

func TestRecentDecisionsPartial(t *testing.T) {
	r := NewRecentDecisions(4)
	r.Append(Decision{BarTime: "a"})
	r.Append(Decision{BarTime: "b"})
	got, _ := r.Recent(context.Background(), 10)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].BarTime)
	assert.Equal(t, "a", got[1].BarTime)
}
