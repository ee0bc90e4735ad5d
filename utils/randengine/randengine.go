// 随机数流，基于golang.org/x/exp/rand的PCG生成器
// 每辆车、每个交通源的原型生成器各持有一条独立的流，保证并行计算时结果可复现
package randengine

import (
	"flag"
	"log"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "offset added to every random stream seed")
)

// Engine 一条随机数流（非线程安全，只能由持有者使用）
type Engine struct {
	*rand.Rand
	seed uint64
}

// New 创建随机数流
// 参数：seed-流的种子，实际种子会加上命令行指定的偏移量
func New(seed uint64) *Engine {
	s := seed + *seedOffset
	return &Engine{Rand: rand.New(rand.NewSource(s)), seed: s}
}

// Stream 由运行种子派生第index条流
// 说明：派生的种子为seed+index，与车辆ID一一对应
func Stream(seed uint64, index uint64) *Engine {
	return New(seed + index)
}

// Seed 流的实际种子（已包含偏移量）
func (e *Engine) Seed() uint64 {
	return e.seed
}

// PTrue 以概率p返回true
func (e *Engine) PTrue(p float64) bool {
	if p <= 0 {
		return false
	}
	return e.Float64() < p
}

// DiscreteDistribution 按权重抽取下标
// 功能：权重无需归一化，权重为0的下标永远不会被抽中
// 参数：weight-非负权重，总和必须为正
// 返回：被抽中的下标
// 算法说明：在[0, 总权重)上取均匀随机数，返回累积权重首次超过它的下标；
// 浮点误差导致未命中时返回最后一个正权重的下标
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	total := 0.
	last := -1
	for i, w := range weight {
		if w > 0 {
			total += w
			last = i
		}
	}
	if last < 0 {
		log.Panicf("randengine: no positive weight in %v", weight)
	}
	r := total * e.Float64()
	sum := 0.
	for i, w := range weight {
		if w <= 0 {
			continue
		}
		sum += w
		if r < sum {
			return int32(i)
		}
	}
	return int32(last)
}
