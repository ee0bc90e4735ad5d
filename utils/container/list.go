package container

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateKey 插入的元素与已有元素的键值完全相同
var ErrDuplicateKey = errors.New("container: duplicate key")

// IHasPosition 具有位置属性的接口
// 功能：定义车辆作为有序列表元素时需要的键值接口
type IHasPosition interface {
	comparable
	Position() float64 // 获取位置（键值）
}

// List 按键值严格递减排列的有序列表
// 功能：第0个元素为键值最大的元素（最靠近车道末端），支持二分查找
// 说明：键值来自元素自身的Position()，元素位置更新后需要调用PopUnsorted+Merge恢复有序性
type List[T IHasPosition] struct {
	ID   string // 列表标识符
	data []T    // 数据，键值严格递减
}

// String 获取列表的字符串表示
func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v, Len:%d}", l.ID, len(l.data))
}

// Len 获取列表长度
func (l *List[T]) Len() int {
	return len(l.data)
}

// At 获取第i个元素
func (l *List[T]) At(i int) T {
	return l.data[i]
}

// Values 获取列表中所有元素
// 功能：返回列表内部数组，调用方不得修改
func (l *List[T]) Values() []T {
	return l.data
}

// Keys 获取列表中所有元素的键值
// 功能：返回按严格递减排列的键值数组
func (l *List[T]) Keys() []float64 {
	keys := make([]float64, len(l.data))
	for i, v := range l.data {
		keys[i] = v.Position()
	}
	return keys
}

// First 获取键值最大的元素
// 返回：元素，列表为空时ok为false
func (l *List[T]) First() (v T, ok bool) {
	if len(l.data) == 0 {
		return v, false
	}
	return l.data[0], true
}

// Last 获取键值最小的元素
// 返回：元素，列表为空时ok为false
func (l *List[T]) Last() (v T, ok bool) {
	if len(l.data) == 0 {
		return v, false
	}
	return l.data[len(l.data)-1], true
}

// SearchAbove 统计键值严格大于key的元素数量
// 功能：二分查找第一个键值小于等于key的元素下标
// 参数：key-查询键值
// 返回：下标i，满足data[:i]键值均大于key，data[i:]键值均小于等于key
func (l *List[T]) SearchAbove(key float64) int {
	return sort.Search(len(l.data), func(i int) bool {
		return l.data[i].Position() <= key
	})
}

// IndexOf 查找元素的下标
// 功能：先按键值二分定位，失败时退化为线性扫描（元素键值已变化但尚未重排的情况）
// 返回：下标，不存在时返回-1
func (l *List[T]) IndexOf(v T) int {
	i := l.SearchAbove(v.Position())
	for j := i; j < len(l.data) && l.data[j].Position() == v.Position(); j++ {
		if l.data[j] == v {
			return j
		}
	}
	for j, x := range l.data {
		if x == v {
			return j
		}
	}
	return -1
}

// Insert 按键值插入元素
// 功能：二分查找插入位置，保持严格递减的顺序
// 参数：v-要插入的元素
// 返回：如果存在键值完全相同的元素则返回ErrDuplicateKey且不插入
func (l *List[T]) Insert(v T) error {
	key := v.Position()
	i := l.SearchAbove(key)
	if i < len(l.data) && l.data[i].Position() == key {
		return ErrDuplicateKey
	}
	var zero T
	l.data = append(l.data, zero)
	copy(l.data[i+1:], l.data[i:])
	l.data[i] = v
	return nil
}

// Remove 移除元素
// 返回：元素是否存在
func (l *List[T]) Remove(v T) bool {
	i := l.IndexOf(v)
	if i < 0 {
		return false
	}
	l.removeAt(i)
	return true
}

// RemoveFirst 移除键值最大的元素
// 返回：被移除的元素，列表为空时ok为false
func (l *List[T]) RemoveFirst() (v T, ok bool) {
	if len(l.data) == 0 {
		return v, false
	}
	v = l.data[0]
	l.removeAt(0)
	return v, true
}

func (l *List[T]) removeAt(i int) {
	var zero T
	copy(l.data[i:], l.data[i+1:])
	l.data[len(l.data)-1] = zero
	l.data = l.data[:len(l.data)-1]
}

// PopUnsorted 移除逆序元素
// 功能：移除键值不小于其前驱元素键值的元素（前驱为保留下来的元素）
// 返回：被移除的逆序元素
// 说明：正常仿真中元素按位置更新后仍然有序，只有发生超车（碰撞）时才会出现逆序
func (l *List[T]) PopUnsorted() (unsorted []T) {
	if len(l.data) <= 1 {
		return nil
	}
	kept := l.data[:1]
	for _, v := range l.data[1:] {
		if v.Position() >= kept[len(kept)-1].Position() {
			unsorted = append(unsorted, v)
		} else {
			kept = append(kept, v)
		}
	}
	var zero T
	for i := len(kept); i < len(l.data); i++ {
		l.data[i] = zero
	}
	l.data = kept
	return unsorted
}

// Merge 批量插入元素
// 功能：将adds按键值递减排序后归并进列表
// 返回：因键值重复而未能插入的元素
func (l *List[T]) Merge(adds []T) (rejected []T) {
	if len(adds) == 0 {
		return nil
	}
	sort.SliceStable(adds, func(i, j int) bool {
		return adds[i].Position() > adds[j].Position()
	})
	merged := make([]T, 0, len(l.data)+len(adds))
	i := 0
	for _, add := range adds {
		for i < len(l.data) && l.data[i].Position() > add.Position() {
			merged = append(merged, l.data[i])
			i++
		}
		if (i < len(l.data) && l.data[i].Position() == add.Position()) ||
			(len(merged) > 0 && merged[len(merged)-1].Position() == add.Position()) {
			rejected = append(rejected, add)
			continue
		}
		merged = append(merged, add)
	}
	merged = append(merged, l.data[i:]...)
	l.data = merged
	return rejected
}
