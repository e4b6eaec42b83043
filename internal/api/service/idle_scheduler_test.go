package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleScheduler_CoalescesBurst(t *testing.T) {
	s := NewIdleScheduler(20 * time.Millisecond)
	defer s.Stop()

	var mu sync.Mutex
	var ran []int
	for i := 1; i <= 10; i++ {
		s.Schedule(func() {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, i)
		})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{10}, ran)
	assert.False(t, s.Pending())
}

func TestIdleScheduler_SeparateBurstsRunSeparately(t *testing.T) {
	s := NewIdleScheduler(10 * time.Millisecond)
	defer s.Stop()

	var runs atomic.Int32
	s.Schedule(func() { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Schedule(func() { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestIdleScheduler_Pending(t *testing.T) {
	s := NewIdleScheduler(time.Hour)
	defer s.Stop()

	assert.False(t, s.Pending())
	s.Schedule(func() {})
	assert.True(t, s.Pending())
}

func TestIdleScheduler_FlushRunsLatest(t *testing.T) {
	s := NewIdleScheduler(time.Hour)
	defer s.Stop()

	var got []string
	s.Schedule(func() { got = append(got, "first") })
	s.Schedule(func() { got = append(got, "second") })

	s.Flush()

	assert.Equal(t, []string{"second"}, got)
	assert.False(t, s.Pending())

	s.Flush()
	assert.Len(t, got, 1)
}

func TestIdleScheduler_Stop(t *testing.T) {
	s := NewIdleScheduler(10 * time.Millisecond)

	var runs atomic.Int32
	s.Schedule(func() { runs.Add(1) })
	s.Stop()
	s.Schedule(func() { runs.Add(1) })
	s.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	assert.False(t, s.Pending())
}

func TestIdleScheduler_DefaultDelay(t *testing.T) {
	s := NewIdleScheduler(0)
	defer s.Stop()
	assert.Equal(t, DefaultSaveDelay, s.delay)
}
