package carfollow

import (
	"math"
)

// OVMModel 优化速度模型与速度差模型(OVM/VDIFF)
// 功能：向间距决定的最优速度松弛，Lambda>0时附加速度差项（VDIFF）
type OVMModel struct {
	V0         float64 // 期望速度
	Tau        float64 // 松弛时间
	S0         float64 // 静止最小间距
	Width      float64 // 最优速度函数的过渡宽度
	Beta       float64 // 形状系数
	Lambda     float64 // 速度差敏感系数
	MaxComfort float64 // 加速度上限（+Inf表示不限制）
}

func (m *OVMModel) Name() string          { return OVM_VDIFF }
func (m *OVMModel) DesiredSpeed() float64 { return m.V0 }
func (m *OVMModel) IsCellular() bool      { return false }

// OptimalSpeed 最优速度函数
// 算法说明：vOpt(s) = v0·(tanh((s-s0)/width - β) + tanh(β)) / (1 + tanh(β))，s<=s0时为0
func (m *OVMModel) OptimalSpeed(gap, v0 float64) float64 {
	if math.IsInf(gap, 1) {
		return v0
	}
	if gap <= m.S0 {
		return 0
	}
	tb := math.Tanh(m.Beta)
	return math.Max(0, v0*(math.Tanh((gap-m.S0)/m.Width-m.Beta)+tb)/(1+tb))
}

// Acc OVM/VDIFF加速度
// 算法说明：a = (vOpt(s) - v)/τ - λΔv，无前车时 a = (v0' - v)/τ
func (m *OVMModel) Acc(in Input) float64 {
	v0 := in.desiredSpeed(m.V0)
	tau := m.Tau * in.Alpha.T
	acc := (m.OptimalSpeed(in.Gap, v0) - in.Speed) / tau
	if in.HasLeader() {
		acc -= m.Lambda * in.DeltaV
	}
	return math.Min(acc, m.MaxComfort*in.Alpha.A)
}
