package carfollow

import (
	"math"
)

// GippsModel Gipps模型
// 功能：以反应时间T为步长，取"加速可达速度"、期望速度与安全速度的最小值
type GippsModel struct {
	V0 float64 // 期望速度
	A  float64 // 最大加速度
	B  float64 // 舒适减速度
	S0 float64 // 静止最小间距
	T  float64 // 反应时间
}

func (m *GippsModel) Name() string          { return GIPPS }
func (m *GippsModel) DesiredSpeed() float64 { return m.V0 }
func (m *GippsModel) IsCellular() bool      { return false }

// Acc Gipps加速度
// 算法说明：
// 1. vSafe = -bT + sqrt(b²T² + vl² + 2b·max(s-s0, 0))
// 2. vNew = min(v + aT, v0', vSafe)
// 3. 加速度 = (vNew - v) / T
func (m *GippsModel) Acc(in Input) float64 {
	v := in.Speed
	t := m.T * in.Alpha.T
	vNew := math.Min(v+m.A*in.Alpha.A*t, in.desiredSpeed(m.V0))
	if in.HasLeader() {
		vl := in.LeaderSpeed()
		bt := m.B * t
		vSafe := -bt + math.Sqrt(bt*bt+vl*vl+2*m.B*math.Max(in.Gap-m.S0, 0))
		vNew = math.Min(vNew, vSafe)
	}
	return (vNew - v) / t
}

// KraussModel Krauss模型
// 功能：Gipps类安全速度模型，带有随机减速扰动epsilon
type KraussModel struct {
	V0      float64 // 期望速度
	A       float64 // 最大加速度
	B       float64 // 舒适减速度
	S0      float64 // 静止最小间距
	T       float64 // 反应时间
	Epsilon float64 // 随机扰动强度[0,1]
}

func (m *KraussModel) Name() string          { return KRAUSS }
func (m *KraussModel) DesiredSpeed() float64 { return m.V0 }
func (m *KraussModel) IsCellular() bool      { return false }

// Acc Krauss加速度
// 算法说明：
// 1. vSafe = vl + (s - s0 - vl·T) / ((v + vl)/(2b) + T)
// 2. vDes = min(v + aT, v0', vSafe)
// 3. 有随机数流时 vNew = max(0, vDes - ε·a·T·U[0,1))，否则vNew = vDes
// 4. 加速度 = (vNew - v) / T
func (m *KraussModel) Acc(in Input) float64 {
	v := in.Speed
	t := m.T * in.Alpha.T
	a := m.A * in.Alpha.A
	vDes := math.Min(v+a*t, in.desiredSpeed(m.V0))
	if in.HasLeader() {
		vl := in.LeaderSpeed()
		vSafe := vl + (in.Gap-m.S0-vl*t)/((v+vl)/(2*m.B)+t)
		vDes = math.Min(vDes, vSafe)
	}
	vNew := vDes
	if m.Epsilon > 0 && in.Rng != nil {
		vNew = math.Max(0, vDes-m.Epsilon*a*t*in.Rng.Float64())
	}
	return (vNew - v) / t
}

// NewellModel Newell简化跟车模型
// 功能：本车在T时间后到达前车当前位置减去静止间距处
type NewellModel struct {
	V0 float64 // 期望速度
	S0 float64 // 静止最小间距
	T  float64 // 时间延迟
}

func (m *NewellModel) Name() string          { return NEWELL }
func (m *NewellModel) DesiredSpeed() float64 { return m.V0 }
func (m *NewellModel) IsCellular() bool      { return false }

// Acc Newell加速度
// 算法说明：vNew = min(max((s - s0)/T, 0), v0')，加速度 = (vNew - v)/T
func (m *NewellModel) Acc(in Input) float64 {
	t := m.T * in.Alpha.T
	vNew := in.desiredSpeed(m.V0)
	if in.HasLeader() {
		vNew = math.Min(vNew, math.Max((in.Gap-m.S0)/t, 0))
	}
	return (vNew - in.Speed) / t
}
