package vehicle

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

// VehicleManager 车辆登记表
// 功能：分配车辆ID与随机数流，维护路网中全部车辆的列表供输出与查询使用
// 说明：新增与删除先进入暂存区，Prepare时统一生效；车辆列表按ID升序
type VehicleManager struct {
	seed   uint64
	nextID int32

	vehicles *container.Registry[int32, *Vehicle]
	mtx      sync.Mutex
}

// NewManager 创建车辆登记表
// 参数：seed-运行随机种子，车辆i的随机数流种子为seed+i
func NewManager(seed uint64) *VehicleManager {
	return &VehicleManager{
		seed:     seed,
		vehicles: container.NewRegistry(func(v *Vehicle) int32 { return v.id }),
	}
}

// New 创建车辆
// 功能：分配ID与随机数流并登记，车辆尚未放入任何车道
func (m *VehicleManager) New(proto *Prototype, opts Options) *Vehicle {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	id := m.nextID
	m.nextID++
	v := newVehicle(id, proto, opts, randengine.Stream(m.seed, uint64(id)))
	m.vehicles.Add(v)
	return v
}

// Remove 注销车辆（驶出路网）
func (m *VehicleManager) Remove(v *Vehicle) {
	m.vehicles.Remove(v)
}

// Prepare 应用暂存的新增与删除
func (m *VehicleManager) Prepare() {
	m.vehicles.Prepare()
}

// Get 根据ID获取车辆
func (m *VehicleManager) Get(id int32) (*Vehicle, error) {
	if v, ok := m.vehicles.Get(id); ok {
		return v, nil
	}
	return nil, fmt.Errorf("no id %d in vehicle data", id)
}

// Vehicles 已登记的全部车辆，按ID升序
func (m *VehicleManager) Vehicles() []*Vehicle {
	return m.vehicles.Data()
}

// Count 已登记的车辆数
func (m *VehicleManager) Count() int {
	return m.vehicles.Len()
}

// Created 累计创建的车辆数
func (m *VehicleManager) Created() int32 {
	return m.nextID
}

// MeanSpeed 全部非障碍物车辆的平均速度，没有车辆时为0
func (m *VehicleManager) MeanSpeed() float64 {
	moving := lo.Filter(m.vehicles.Data(), func(v *Vehicle, _ int) bool { return !v.IsObstacle() })
	if len(moving) == 0 {
		return 0
	}
	return lo.SumBy(moving, func(v *Vehicle) float64 { return v.speed }) / float64(len(moving))
}
