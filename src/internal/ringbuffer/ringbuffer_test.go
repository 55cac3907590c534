// FILE: src/internal/ringbuffer/ringbuffer_test.go
package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushWithinCapacityPreservesOrder(t *testing.T) {
	b := New[int](5)
	for i := 1; i <= 3; i++ {
		b.Push(i)
	}
	assert.Equal(t, []int{1, 2, 3}, b.Snapshot())
	assert.Equal(t, 3, b.Size())
}

func TestPushBeyondCapacityOverwritesOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 7; i++ {
		b.Push(i)
	}
	assert.Equal(t, []int{5, 6, 7}, b.Snapshot())
	assert.Equal(t, 3, b.Size())
}

func TestConcurrentPushIsSafe(t *testing.T) {
	b := New[int](100)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				b.Push(base*100 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 100, b.Size())
	assert.Len(t, b.Snapshot(), 100)
}
