package road

import (
	"fmt"

	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// LightPhase 信号灯相位
type LightPhase struct {
	State    entity.LightState // 相位状态
	Duration float64           // 持续时间（秒）
}

// TrafficLight 固定相位信号灯
// 功能：在路段的Position处设置停止线，按预设程序循环切换相位
type TrafficLight struct {
	Position float64 // 停止线位置

	phases     []LightPhase
	step       int     // 当前相位下标
	remainingT float64 // 当前相位剩余时间
}

// NewTrafficLight 创建固定相位信号灯
// 功能：校验相位程序并按初始偏移量推进到对应相位
// 参数：pos-停止线位置，phases-相位程序，offset-初始偏移时间（秒）
// 返回：信号灯，相位程序为空或总时长非正时返回ConfigError
func NewTrafficLight(pos float64, phases []LightPhase, offset float64) (*TrafficLight, error) {
	name := fmt.Sprintf("light@%.1f", pos)
	if len(phases) == 0 {
		return nil, entity.NewConfigError(name, "phases", "set with empty traffic light")
	}
	total := 0.0
	for i, p := range phases {
		if p.Duration < 0 {
			return nil, entity.NewConfigError(name, "phases", "phase %d has negative duration %v", i, p.Duration)
		}
		total += p.Duration
	}
	if total <= 0 {
		return nil, entity.NewConfigError(name, "phases", "total cycle time must be positive")
	}
	tl := &TrafficLight{
		Position:   pos,
		phases:     phases,
		remainingT: phases[0].Duration,
	}
	// 偏移量为0时也需要跳过持续时间为0的初始相位
	tl.Update(max(offset, 0))
	return tl, nil
}

// State 当前信号灯状态
func (tl *TrafficLight) State() entity.LightState {
	return tl.phases[tl.step].State
}

// RemainingTime 当前相位剩余时间
func (tl *TrafficLight) RemainingTime() float64 {
	return tl.remainingT
}

// Update 推进信号灯
// 功能：剩余时间耗尽时切换到下一个持续时间为正的相位
// 参数：dt-时间步长
func (tl *TrafficLight) Update(dt float64) {
	tl.remainingT -= dt
	for tl.remainingT <= 0 {
		tl.step = (tl.step + 1) % len(tl.phases)
		tl.remainingT += tl.phases[tl.step].Duration
	}
}
