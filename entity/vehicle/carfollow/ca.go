package carfollow

import (
	"math"
)

// 元胞自动机模型以dt=1为步长，速度单位为元胞/步，位置单位为元胞
// 输出加速度为(vNew-v)·cellLength，其中v为向下取整后的元胞速度，积分前须先用SnapSpeed对齐

// cellular 以元胞为单位更新速度的模型
type cellular interface {
	cellLength() float64
}

// SnapSpeed 速度对齐到元胞网格
// 功能：元胞自动机模型的速度向下取整为整数元胞/步，其他模型原样返回
// 说明：车辆以SnapSpeed(v)+Acc前进时，位移不超过向下取整后的可用元胞数
func SnapSpeed(m Model, speed float64) float64 {
	c, ok := m.(cellular)
	if !ok || speed <= 0 {
		return math.Max(speed, 0)
	}
	return float64(toCells(speed, c.cellLength())) * c.cellLength()
}

// NSMModel Nagel-Schreckenberg模型
type NSMModel struct {
	CellLength   float64 // 元胞长度（米）
	VMax         int     // 最大速度（元胞/步）
	PSlowdown    float64 // 随机慢化概率
	PSlowToStart float64 // 静止车辆的慢启动概率
}

func (m *NSMModel) Name() string          { return NSM }
func (m *NSMModel) DesiredSpeed() float64 { return float64(m.VMax) * m.CellLength }
func (m *NSMModel) IsCellular() bool      { return true }
func (m *NSMModel) cellLength() float64   { return m.CellLength }

// Acc NSM加速度
// 算法说明：
// 1. 换算为元胞单位：v、gap向下取整
// 2. 加速：vNew = min(v+1, vmax')
// 3. 减速：vNew = min(vNew, gap)
// 4. 随机慢化：以概率p（静止时为慢启动概率）vNew = max(vNew-1, 0)
func (m *NSMModel) Acc(in Input) float64 {
	v := toCells(in.Speed, m.CellLength)
	vmax := toCells(in.desiredSpeed(m.DesiredSpeed()), m.CellLength)
	vNew := min(v+1, vmax)
	if in.HasLeader() {
		vNew = min(vNew, max(gapCells(in.Gap, m.CellLength), 0))
	}
	p := m.PSlowdown
	if v == 0 && m.PSlowToStart > 0 {
		p = m.PSlowToStart
	}
	if p > 0 && in.Rng != nil && in.Rng.PTrue(p) {
		vNew = max(vNew-1, 0)
	}
	return float64(vNew-v) * m.CellLength
}

// KKWModel Kerner-Klenov-Wolf三相交通流元胞自动机模型
type KKWModel struct {
	CellLength float64 // 元胞长度（米）
	VMax       int     // 最大速度（元胞/步）
	K          float64 // 同步距离系数
	PB0        float64 // 静止时的随机减速概率
	PB1        float64 // 行驶时的随机减速概率
	PA1        float64 // 低速时的随机加速概率
	PA2        float64 // 高速时的随机加速概率
	VP         float64 // 随机加速概率切换的速度阈值（元胞/步）
}

func (m *KKWModel) Name() string          { return KKW }
func (m *KKWModel) DesiredSpeed() float64 { return float64(m.VMax) * m.CellLength }
func (m *KKWModel) IsCellular() bool      { return true }
func (m *KKWModel) cellLength() float64   { return m.CellLength }

// Acc KKW加速度
// 算法说明：
// 1. 同步距离D = k·v（元胞）
// 2. 间距大于D时vc = v+1，否则vc = v + sign(vl - v)
// 3. 确定性速度ṽ = max(0, min(vc, vmax', gap))
// 4. 随机扰动η：以概率pb减1，以概率pa加1
// 5. vNew = max(0, min(ṽ+η, v+1, vmax', gap))
func (m *KKWModel) Acc(in Input) float64 {
	v := toCells(in.Speed, m.CellLength)
	vmax := toCells(in.desiredSpeed(m.DesiredSpeed()), m.CellLength)
	gap := math.MaxInt32
	vl := vmax
	if in.HasLeader() {
		gap = max(gapCells(in.Gap, m.CellLength), 0)
		vl = toCells(math.Max(in.LeaderSpeed(), 0), m.CellLength)
	}
	vc := v + 1
	if float64(gap) <= m.K*float64(v) {
		switch {
		case vl > v:
			vc = v + 1
		case vl < v:
			vc = v - 1
		default:
			vc = v
		}
	}
	vt := max(0, min(vc, vmax, gap))
	eta := 0
	if in.Rng != nil {
		pb := m.PB1
		if v == 0 {
			pb = m.PB0
		}
		pa := m.PA1
		if float64(v) >= m.VP {
			pa = m.PA2
		}
		r := in.Rng.Float64()
		switch {
		case r < pb:
			eta = -1
		case r < pb+pa:
			eta = 1
		}
	}
	vNew := max(0, min(vt+eta, v+1, vmax, gap))
	return float64(vNew-v) * m.CellLength
}

func toCells(x, cellLength float64) int {
	if math.IsInf(x, 1) {
		return math.MaxInt32
	}
	return int(math.Floor(x/cellLength + 1e-9))
}

// gapCells 间距换算为元胞数，不做容差修正，保证前进距离不超过实际间距
func gapCells(gap, cellLength float64) int {
	if math.IsInf(gap, 1) {
		return math.MaxInt32
	}
	return int(math.Floor(gap / cellLength))
}
