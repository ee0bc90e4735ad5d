package lanechange

import (
	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// BiasStrategy MOBIL激励中的方向偏置
// 功能：返回从激励值中减去的偏置项，正值抑制该方向的变道
type BiasStrategy interface {
	Bias(v entity.IVehicle, direction int32) float64
}

// KeepRightBias 靠右行驶偏置
// 说明：向左（车道编号减小）为+1方向，即向左变道需要额外克服Strength的激励，向右变道获得Strength的奖励
type KeepRightBias struct {
	Strength float64
}

func (b KeepRightBias) Bias(_ entity.IVehicle, direction int32) float64 {
	switch direction {
	case entity.TO_LEFT:
		return b.Strength
	case entity.TO_RIGHT:
		return -b.Strength
	}
	return 0
}

// PreferredLaneBias 按车辆原型的偏好车道偏置
// 功能：Lanes中列出的原型向偏好车道变道获得Strength的奖励，离开偏好车道受到Strength的惩罚；
// 未列出的原型交给Fallback处理
type PreferredLaneBias struct {
	Lanes    map[string]int32
	Strength float64
	Fallback BiasStrategy
}

func (b PreferredLaneBias) Bias(v entity.IVehicle, direction int32) float64 {
	preferred, ok := b.Lanes[v.Label()]
	if !ok || v.Lane() == nil {
		if b.Fallback == nil {
			return 0
		}
		return b.Fallback.Bias(v, direction)
	}
	cur := v.Lane().Index()
	switch {
	case direction == entity.NO_CHANGE:
		return 0
	case cur == preferred:
		return b.Strength
	case (preferred-cur)*direction > 0:
		return -b.Strength
	default:
		return b.Strength
	}
}
