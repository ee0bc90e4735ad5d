package container

import (
	"cmp"
	"slices"
	"sync"
)

// Registry 按键升序排列的登记表
// 功能：新增与删除先进入暂存区（可并发调用），Prepare时统一生效，Data在两次Prepare之间保持不变
// 说明：元素按键升序保存，遍历顺序确定，Get通过二分查找实现
type Registry[K cmp.Ordered, T any] struct {
	key  func(T) K
	data []T

	added   []T
	removed []K
	mtx     sync.Mutex
}

// NewRegistry 创建登记表
// 参数：key-取元素键的函数，同一登记表内键必须唯一
func NewRegistry[K cmp.Ordered, T any](key func(T) K) *Registry[K, T] {
	return &Registry[K, T]{key: key}
}

// Add 暂存新增元素
func (r *Registry[K, T]) Add(item T) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.added = append(r.added, item)
}

// Remove 暂存删除元素
func (r *Registry[K, T]) Remove(item T) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.removed = append(r.removed, r.key(item))
}

// Prepare 应用暂存的新增与删除
// 算法说明：
// 1. 新增元素排序后与现有数据归并，键重复时panic
// 2. 删除按键标记后一次性压缩，不存在的键panic
// 说明：同一批次内先新增后删除，因此同一步内创建并删除的元素不会残留
func (r *Registry[K, T]) Prepare() {
	if len(r.added) > 0 {
		slices.SortFunc(r.added, func(a, b T) int { return cmp.Compare(r.key(a), r.key(b)) })
		merged := make([]T, 0, len(r.data)+len(r.added))
		i, j := 0, 0
		for i < len(r.data) || j < len(r.added) {
			switch {
			case j == len(r.added):
				merged = append(merged, r.data[i])
				i++
			case i == len(r.data):
				merged = append(merged, r.added[j])
				j++
			default:
				if cmp.Less(r.key(r.data[i]), r.key(r.added[j])) {
					merged = append(merged, r.data[i])
					i++
				} else {
					merged = append(merged, r.added[j])
					j++
				}
			}
			if n := len(merged); n > 1 && r.key(merged[n-2]) == r.key(merged[n-1]) {
				panic("container: duplicate key in registry")
			}
		}
		r.data = merged
		r.added = r.added[:0]
	}
	if len(r.removed) > 0 {
		drop := make(map[K]struct{}, len(r.removed))
		for _, k := range r.removed {
			if _, ok := r.find(k); !ok {
				panic("container: remove unknown key from registry")
			}
			drop[k] = struct{}{}
		}
		r.data = slices.DeleteFunc(r.data, func(item T) bool {
			_, ok := drop[r.key(item)]
			return ok
		})
		r.removed = r.removed[:0]
	}
}

func (r *Registry[K, T]) find(k K) (int, bool) {
	return slices.BinarySearchFunc(r.data, k, func(item T, k K) int { return cmp.Compare(r.key(item), k) })
}

// Get 根据键查找已生效的元素
func (r *Registry[K, T]) Get(k K) (item T, ok bool) {
	if i, found := r.find(k); found {
		return r.data[i], true
	}
	return
}

// Data 已生效的全部元素，按键升序，调用方不应修改
func (r *Registry[K, T]) Data() []T {
	return r.data
}

// Len 已生效的元素数量
func (r *Registry[K, T]) Len() int {
	return len(r.data)
}
