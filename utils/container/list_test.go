package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
)

type testData struct {
	id  int
	pos float64
}

func (t *testData) Position() float64 {
	return t.pos
}

func assertStrictlyDecreasing(t *testing.T, l *container.List[*testData]) {
	keys := l.Keys()
	for i := 1; i < len(keys); i++ {
		assert.Greater(t, keys[i-1], keys[i])
	}
}

func TestListInit(t *testing.T) {
	l := &container.List[*testData]{}
	_, ok := l.First()
	assert.False(t, ok)
	_, ok = l.Last()
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.SearchAbove(10))
}

func TestListInsertAnyOrder(t *testing.T) {
	l := &container.List[*testData]{ID: "test"}
	positions := []float64{30, 5, 100, 42, 0, 77.5, 12}
	items := make([]*testData, len(positions))
	for i, p := range positions {
		items[i] = &testData{id: i, pos: p}
		require.NoError(t, l.Insert(items[i]))
		assertStrictlyDecreasing(t, l)
	}
	assert.Equal(t, []float64{100, 77.5, 42, 30, 12, 5, 0}, l.Keys())

	first, ok := l.First()
	assert.True(t, ok)
	assert.Equal(t, 100.0, first.pos)
	last, ok := l.Last()
	assert.True(t, ok)
	assert.Equal(t, 0.0, last.pos)

	// 任意顺序删除，仍然保持有序
	for _, i := range []int{3, 0, 6, 2, 5, 1, 4} {
		assert.True(t, l.Remove(items[i]))
		assertStrictlyDecreasing(t, l)
	}
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Remove(items[0]))
}

func TestListDuplicateKey(t *testing.T) {
	l := &container.List[*testData]{}
	require.NoError(t, l.Insert(&testData{pos: 10}))
	assert.ErrorIs(t, l.Insert(&testData{pos: 10}), container.ErrDuplicateKey)
	assert.Equal(t, 1, l.Len())
}

func TestListSearchAbove(t *testing.T) {
	l := &container.List[*testData]{}
	for _, p := range []float64{10, 20, 30} {
		require.NoError(t, l.Insert(&testData{pos: p}))
	}
	// data: 30 20 10
	assert.Equal(t, 0, l.SearchAbove(30))
	assert.Equal(t, 1, l.SearchAbove(29.9))
	assert.Equal(t, 1, l.SearchAbove(20))
	assert.Equal(t, 2, l.SearchAbove(15))
	assert.Equal(t, 3, l.SearchAbove(-1))
	assert.Equal(t, 0, l.SearchAbove(100))
}

func TestListRemoveFirst(t *testing.T) {
	l := &container.List[*testData]{}
	for _, p := range []float64{1, 3, 2} {
		require.NoError(t, l.Insert(&testData{pos: p}))
	}
	v, ok := l.RemoveFirst()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v.pos)
	assert.Equal(t, []float64{2, 1}, l.Keys())
}

func TestListIndexOfAfterKeyChange(t *testing.T) {
	l := &container.List[*testData]{}
	a := &testData{pos: 10}
	b := &testData{pos: 5}
	require.NoError(t, l.Insert(a))
	require.NoError(t, l.Insert(b))
	// 键值变化但顺序未变
	a.pos = 12
	b.pos = 7
	assert.Equal(t, 0, l.IndexOf(a))
	assert.Equal(t, 1, l.IndexOf(b))
	assert.True(t, l.Remove(b))
}

func TestListPopUnsortedAndMerge(t *testing.T) {
	l := &container.List[*testData]{}
	a := &testData{id: 1, pos: 30}
	b := &testData{id: 2, pos: 20}
	c := &testData{id: 3, pos: 10}
	for _, x := range []*testData{a, b, c} {
		require.NoError(t, l.Insert(x))
	}
	// c超过了b
	c.pos = 25
	unsorted := l.PopUnsorted()
	assert.Equal(t, []*testData{c}, unsorted)
	assert.Equal(t, []float64{30, 20}, l.Keys())
	rejected := l.Merge(append(unsorted, &testData{id: 4, pos: 20}, &testData{id: 5, pos: 1}))
	assert.Len(t, rejected, 1)
	assert.Equal(t, 4, rejected[0].id)
	assert.Equal(t, []float64{30, 25, 20, 1}, l.Keys())
	assertStrictlyDecreasing(t, l)
}
