package carfollow

import (
	"math"
)

// IDMModel 智能驾驶模型(IDM)
// 功能：连续型跟车模型，自由流项与期望间距项相减得到加速度
type IDMModel struct {
	V0    float64 // 期望速度（米/秒）
	T     float64 // 安全时距（秒）
	S0    float64 // 静止最小间距（米）
	S1    float64 // 与速度相关的间距项（米），通常为0
	A     float64 // 最大加速度（米/秒²）
	B     float64 // 舒适减速度（米/秒²）
	Delta float64 // 加速度指数
}

func (m *IDMModel) Name() string          { return IDM }
func (m *IDMModel) DesiredSpeed() float64 { return m.V0 }
func (m *IDMModel) IsCellular() bool      { return false }

// Acc IDM加速度
// 算法说明：
// 1. 有效参数：v0'=min(v0*αv0, 限速)，T'=T*αT，a'=a*αA
// 2. 自由流项：a'(1-(v/v0')^δ)
// 3. 期望间距：s* = s0 + s1*sqrt(v/v0') + max(0, vT' + vΔv/(2sqrt(a'b)))
// 4. 有前车时减去a'(s*/s)²，s<=0时返回-Inf
// 参考：https://en.wikipedia.org/wiki/Intelligent_driver_model
func (m *IDMModel) Acc(in Input) float64 {
	v0 := in.desiredSpeed(m.V0)
	a := m.A * in.Alpha.A
	free := m.free(in.Speed, v0, a)
	if !in.HasLeader() {
		return free
	}
	if in.Gap <= 0 {
		return math.Inf(-1)
	}
	sstar := m.desiredGap(in, v0, a)
	return free - a*(sstar/in.Gap)*(sstar/in.Gap)
}

func (m *IDMModel) free(v, v0, a float64) float64 {
	if v0 <= 0 {
		return -m.B
	}
	return a * (1 - math.Pow(v/v0, m.Delta))
}

func (m *IDMModel) desiredGap(in Input, v0, a float64) float64 {
	v := in.Speed
	s := m.S0
	if m.S1 > 0 && v0 > 0 {
		s += m.S1 * math.Sqrt(v/v0)
	}
	return s + math.Max(0, v*m.T*in.Alpha.T+v*in.DeltaV/(2*math.Sqrt(a*m.B)))
}

// ACCModel 自适应巡航模型（IDM + 恒定加速度启发式CAH）
// 功能：在前车突然切入等场景下比IDM更"冷静"，Coolness越大越依赖CAH
type ACCModel struct {
	IDMModel
	Coolness float64 // 冷静系数，取值[0,1]
}

func (m *ACCModel) Name() string { return ACC }

// Acc ACC加速度
// 算法说明：
// 1. 计算IDM加速度aIDM
// 2. 计算CAH加速度：前车加速度取min(aLead, a)，
//    若vl(v-vl) <= -2s*aLead：aCAH = v²aLead/(vl²-2s*aLead)
//    否则：aCAH = aLead - (v-vl)²Θ(v-vl)/(2s)
// 3. aIDM >= aCAH时取aIDM，否则取(1-c)aIDM + c(aCAH + b*tanh((aIDM-aCAH)/b))
func (m *ACCModel) Acc(in Input) float64 {
	accIDM := m.IDMModel.Acc(in)
	if !in.HasLeader() || in.Gap <= 0 {
		return accIDM
	}
	a := m.A * in.Alpha.A
	v := in.Speed
	vl := in.LeaderSpeed()
	s := in.Gap
	aLead := math.Min(in.LeaderAcc, a)
	var accCAH float64
	if denom := vl*vl - 2*s*aLead; vl*(v-vl) <= -2*s*aLead && denom > 0 {
		accCAH = v * v * aLead / denom
	} else {
		dv := math.Max(v-vl, 0)
		accCAH = aLead - dv*dv/(2*s)
	}
	if accIDM >= accCAH {
		return accIDM
	}
	return (1-m.Coolness)*accIDM + m.Coolness*(accCAH+m.B*math.Tanh((accIDM-accCAH)/m.B))
}
