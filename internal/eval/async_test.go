package eval

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchesBasic(t *testing.T) {
	r := NewDispatches()
	assert.Nil(t, r.Current())
	assert.Nil(t, r.Complete(nil))

	d := r.Register("(a)")
	assert.Equal(t, "_eval_1", d.ID)
	assert.Equal(t, 1, d.Seq)
	assert.Same(t, d, r.Current())
	assert.Same(t, d, r.Get("_eval_1"))

	select {
	case <-d.Done():
		t.Fatal("done before completion")
	default:
	}

	got := r.Complete(nil)
	assert.Same(t, d, got)
	assert.Nil(t, r.Current())
	assert.NoError(t, d.Err)
	assert.GreaterOrEqual(t, int64(d.Latency), int64(0))
	<-d.Done()
}

func TestDispatchesFaults(t *testing.T) {
	r := NewDispatches()
	boom := errors.New("boom")

	r.Register("(a)")
	r.Complete(nil)
	d := r.Register("(b)")
	r.Complete(boom)

	assert.ErrorIs(t, d.Err, boom)
	assert.Equal(t, "_eval_2", d.ID)
	assert.Nil(t, r.Get("_eval_3"))

	sent, faults, waited := r.Stats()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, faults)
	assert.GreaterOrEqual(t, int64(waited), int64(d.Latency))
}

func TestDispatchesUniqueIDs(t *testing.T) {
	r := NewDispatches()
	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.Register("(x)").ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], id)
		seen[id] = true
	}
	sent, _, _ := r.Stats()
	assert.Equal(t, 50, sent)
}
