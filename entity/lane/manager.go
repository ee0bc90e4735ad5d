package lane

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/parallel"
)

// LaneManager Lane管理器
// 功能：登记路网中的全部车道，提供按标识查找与全局批处理（暂存应用、重排、一致性检查）
// 说明：车道的存储由所属路段持有，管理器只保存引用
type LaneManager struct {
	data  map[string]*Lane
	lanes []*Lane
}

// NewManager 创建Lane管理器实例
func NewManager() *LaneManager {
	return &LaneManager{
		data:  make(map[string]*Lane),
		lanes: make([]*Lane, 0),
	}
}

// Add 登记车道
// 说明：重复登记同一标识属于程序错误
func (m *LaneManager) Add(l *Lane) {
	if _, ok := m.data[l.ID()]; ok {
		log.Panicf("duplicate lane %s", l.ID())
	}
	m.data[l.ID()] = l
	m.lanes = append(m.lanes, l)
}

// Get 根据标识获取车道
func (m *LaneManager) Get(id string) (*Lane, error) {
	if l, ok := m.data[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("no id %s in lane data", id)
}

// Lanes 全部车道
func (m *LaneManager) Lanes() []*Lane {
	return m.lanes
}

// VehicleCount 路网中的车辆总数
func (m *LaneManager) VehicleCount() int {
	return lo.SumBy(m.lanes, func(l *Lane) int { return l.Len() })
}

// Outflow 被吸收的车辆总数
func (m *LaneManager) Outflow() int32 {
	return lo.SumBy(m.lanes, func(l *Lane) int32 { return l.outflow })
}

// ApplyStaged 应用所有车道暂存的车辆变动
// 说明：每条车道只修改自身数据，可以并行
func (m *LaneManager) ApplyStaged() {
	// 先统一移除再统一插入，避免车辆同时出现在两条车道中时被二分查找误判
	parallel.GoFor(m.lanes, func(l *Lane) {
		for _, v := range l.staged.removeBuffer {
			l.Remove(v)
		}
		clear(l.staged.removeBuffer)
		l.staged.removeBuffer = l.staged.removeBuffer[:0]
	})
	parallel.GoFor(m.lanes, func(l *Lane) { l.ApplyStaged() })
}

// Resort 对所有车道恢复有序性
// 返回：因位置完全重合被微调的车辆
func (m *LaneManager) Resort() []entity.IVehicle {
	res := parallel.GoMap(m.lanes, func(l *Lane) []entity.IVehicle { return l.Resort() })
	return lo.Flatten(res)
}

// CheckConsistency 对所有车道做一致性检查
// 返回：全部碰撞记录
func (m *LaneManager) CheckConsistency() []*entity.CrashError {
	res := parallel.GoMap(m.lanes, func(l *Lane) []*entity.CrashError { return l.CheckConsistency() })
	return lo.Flatten(res)
}
