// 并行工具，基于errgroup在多个协程间切分任务
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// limit 并发协程数上限，<=0表示使用CPU核数
var limit = 0

// SetLimit 设置并发协程数上限
// 参数：n-上限，n<=0时使用runtime.NumCPU()，n==1时退化为串行执行
func SetLimit(n int) {
	limit = n
}

func workers() int {
	if limit > 0 {
		return limit
	}
	return runtime.NumCPU()
}

// GoFor 并行遍历数组
// 功能：将arr切分为若干块，每块在独立协程中顺序执行f
// 参数：arr-待遍历数组，f-对每个元素执行的函数
// 说明：f之间不得存在数据竞争，调用返回时所有f均已执行完毕
func GoFor[T any](arr []T, f func(T)) {
	_ = GoForErr(arr, func(x T) error {
		f(x)
		return nil
	})
}

// GoForErr 并行遍历数组（带错误返回）
// 功能：与GoFor相同，但收集第一个出现的错误
// 返回：第一个非nil错误
func GoForErr[T any](arr []T, f func(T) error) error {
	n := workers()
	if n <= 1 || len(arr) <= 1 {
		for _, x := range arr {
			if err := f(x); err != nil {
				return err
			}
		}
		return nil
	}
	chunk := (len(arr) + n - 1) / n
	var g errgroup.Group
	for start := 0; start < len(arr); start += chunk {
		end := min(start+chunk, len(arr))
		part := arr[start:end]
		g.Go(func() error {
			for _, x := range part {
				if err := f(x); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// GoMap 并行映射数组
// 功能：对arr中每个元素并行执行f，结果按原顺序返回
func GoMap[T any, R any](arr []T, f func(T) R) []R {
	res := make([]R, len(arr))
	idx := make([]int, len(arr))
	for i := range idx {
		idx[i] = i
	}
	GoFor(idx, func(i int) {
		res[i] = f(arr[i])
	})
	return res
}
