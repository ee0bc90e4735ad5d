package container_test

import (
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
)

func ids(items []*testData) []int {
	return lo.Map(items, func(d *testData, _ int) int { return d.id })
}

func TestRegistryStaged(t *testing.T) {
	r := container.NewRegistry(func(d *testData) int { return d.id })
	var wg sync.WaitGroup
	for _, id := range []int{5, 1, 3, 2, 4} {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.Add(&testData{id: id})
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
	r.Prepare()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(r.Data()))

	three, ok := r.Get(3)
	assert.True(t, ok)
	r.Remove(three)
	r.Add(&testData{id: 0})
	r.Add(&testData{id: 9})
	_, ok = r.Get(3)
	assert.True(t, ok)
	r.Prepare()
	assert.Equal(t, []int{0, 1, 2, 4, 5, 9}, ids(r.Data()))
	_, ok = r.Get(3)
	assert.False(t, ok)
}

func TestRegistryAddRemoveSameBatch(t *testing.T) {
	r := container.NewRegistry(func(d *testData) int { return d.id })
	d := &testData{id: 7}
	r.Add(d)
	r.Remove(d)
	r.Prepare()
	assert.Equal(t, 0, r.Len())
}

func TestRegistryPanics(t *testing.T) {
	r := container.NewRegistry(func(d *testData) int { return d.id })
	r.Add(&testData{id: 1})
	r.Prepare()
	r.Add(&testData{id: 1})
	assert.Panics(t, r.Prepare)

	r = container.NewRegistry(func(d *testData) int { return d.id })
	r.Add(&testData{id: 2})
	r.Add(&testData{id: 2})
	assert.Panics(t, r.Prepare)

	r = container.NewRegistry(func(d *testData) int { return d.id })
	r.Remove(&testData{id: 4})
	assert.Panics(t, r.Prepare)
}
