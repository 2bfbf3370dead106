package worker

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllTasksBeforeStop(t *testing.T) {
	p := NewPool(4)

	var n atomic.Int64
	for i := 0; i < 100; i++ {
		require.True(t, p.Submit(func() { n.Add(1) }))
	}
	p.Stop()

	assert.Equal(t, int64(100), n.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1)
	p.Stop()

	assert.False(t, p.Submit(func() {}))
	assert.NotPanics(t, p.Stop)
}

func TestPool_ZeroWorkersStillRuns(t *testing.T) {
	p := NewPool(0)

	ran := make(chan struct{})
	p.Submit(func() { close(ran) })
	<-ran
	p.Stop()
}
