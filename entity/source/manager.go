package source

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
)

// SourceManager 交通源管理器
// 功能：持有全部恒定流量交通源与出发时刻表，在每步的边界处理阶段统一注入车辆
type SourceManager struct {
	inflows  []*Inflow
	schedule *Schedule
}

// NewManager 创建交通源管理器
func NewManager() *SourceManager {
	return &SourceManager{schedule: NewSchedule()}
}

// AddInflow 添加恒定流量交通源
func (m *SourceManager) AddInflow(s *Inflow) {
	m.inflows = append(m.inflows, s)
}

// Inflows 全部恒定流量交通源
func (m *SourceManager) Inflows() []*Inflow {
	return m.inflows
}

// Schedule 出发时刻表
func (m *SourceManager) Schedule() *Schedule {
	return m.schedule
}

// Waiting 全部交通源在路网外排队的车辆数
func (m *SourceManager) Waiting() int {
	return lo.SumBy(m.inflows, func(s *Inflow) int { return s.Waiting() })
}

// Step 注入车辆
// 功能：先处理到期的出发请求，再推进各恒定流量交通源
// 参数：t-当前时刻，dt-步长，vehicles-车辆登记表
// 返回：本步进入路网的车辆
// 说明：按添加顺序串行执行，保证结果与并行度无关
func (m *SourceManager) Step(t, dt float64, vehicles *vehicle.VehicleManager) []*vehicle.Vehicle {
	added := m.schedule.Step(t, vehicles)
	for _, s := range m.inflows {
		added = append(added, s.Step(dt, vehicles)...)
	}
	return added
}
