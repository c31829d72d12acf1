package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushDrainOrder(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	q.Push(testItem{ID: 2}, testItem{ID: 3})
	assert.Equal(t, 3, q.Len())

	items := q.Drain()
	assert.Equal(t, []int{1, 2, 3}, []int{items[0].ID, items[1].ID, items[2].ID})
	assert.True(t, q.Empty())
	assert.Empty(t, q.Drain())
}

func TestQueue_DrainIsolatesCaller(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	first := q.Drain()
	q.Push(3)

	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{3}, q.Drain())
}

func TestQueue_BoundedEvictsOldest(t *testing.T) {
	q := NewBounded[int](3)

	assert.Equal(t, 0, q.Push(1, 2, 3))
	assert.Equal(t, 2, q.Push(4, 5))
	assert.Equal(t, []int{3, 4, 5}, q.Drain())
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestQueue_BoundedZeroIsUnbounded(t *testing.T) {
	q := NewBounded[int](0)
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	assert.Equal(t, 100, q.Len())
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(base*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}
