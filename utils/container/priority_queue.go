package container

import "container/heap"

// entry 队列元素
type entry[T any] struct {
	value    T
	priority float64
	seq      uint64 // 入队序号，优先级相同时先入队者先出
}

type entries[T any] []entry[T]

func (h entries[T]) Len() int { return len(h) }

func (h entries[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entries[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entries[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entries[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[:n-1]
	return e
}

// PriorityQueue 稳定的最小优先队列
// 功能：按优先级（如出发时刻）从小到大出队，优先级相同的元素按入队顺序出队
// 说明：出队顺序与堆内部布局无关，保证同一输入下仿真结果可复现
type PriorityQueue[T any] struct {
	heap entries[T]
	seq  uint64
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

func (q *PriorityQueue[T]) Len() int {
	return len(q.heap)
}

// First 队首元素及其优先级
// 返回：队列为空时ok为false
func (q *PriorityQueue[T]) First() (value T, priority float64, ok bool) {
	if len(q.heap) == 0 {
		return value, 0, false
	}
	return q.heap[0].value, q.heap[0].priority, true
}

// Push 入队
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	heap.Push(&q.heap, entry[T]{value: value, priority: priority, seq: q.seq})
	q.seq++
}

// Pop 出队
// 说明：队列为空时调用属于程序错误
func (q *PriorityQueue[T]) Pop() (value T, priority float64) {
	e := heap.Pop(&q.heap).(entry[T])
	return e.value, e.priority
}

// PopUntil 依次弹出优先级不大于limit的全部元素
func (q *PriorityQueue[T]) PopUntil(limit float64) []T {
	var res []T
	for len(q.heap) > 0 && q.heap[0].priority <= limit {
		v, _ := q.Pop()
		res = append(res, v)
	}
	return res
}
