package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-pulse/internal/models"
)

func TestEmptyPeek(t *testing.T) {
	box := New[models.BpmReading]()

	_, ok := box.Peek()
	assert.False(t, ok)
}

func TestStoreOverwrites(t *testing.T) {
	box := New[models.BpmReading]()

	box.Store(models.BpmReading{Bpm: 60, TMs: 100})
	box.Store(models.BpmReading{Bpm: 72, TMs: 200})

	r, ok := box.Peek()
	require.True(t, ok)
	assert.Equal(t, 72, r.Bpm)
	assert.Equal(t, int64(200), r.TMs)
}

func TestPeekIsNonDestructive(t *testing.T) {
	box := New[models.BpmReading]()
	box.Store(models.BpmReading{Bpm: 60, TMs: 100})

	// 多个消费者独立观察同一最新值
	for i := 0; i < 3; i++ {
		r, ok := box.Peek()
		require.True(t, ok)
		assert.Equal(t, 60, r.Bpm)
	}
}

func TestConcurrentWriterAndReaders(t *testing.T) {
	box := New[int]()
	box.Store(0)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			box.Store(i)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for i := 0; i < 1000; i++ {
				v, ok := box.Peek()
				require.True(t, ok)
				// 单写入方下读到的值单调不减
				require.GreaterOrEqual(t, v, last)
				last = v
			}
		}()
	}

	wg.Wait()
}
