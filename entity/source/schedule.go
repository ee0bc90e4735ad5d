package source

import (
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
)

// Departure 指定时刻出发的单辆车
type Departure struct {
	Time      float64 // 出发时刻（秒）
	Road      *road.Road
	Lane      int32
	Prototype *vehicle.Prototype
	Options   vehicle.Options
	MinGap    float64
}

// Schedule 按时刻表出发的车辆
// 功能：以出发时刻为优先级保存全部出发请求，到时尝试插入
// 说明：插入位置被占用的请求推迟到下一步重试，不影响其他请求
type Schedule struct {
	queue   *container.PriorityQueue[*Departure]
	delayed int32 // 因空间不足推迟的累计次数
}

// NewSchedule 创建出发时刻表
func NewSchedule() *Schedule {
	return &Schedule{queue: container.NewPriorityQueue[*Departure]()}
}

// Add 加入出发请求
// 返回：车道不存在或位置超出路段范围时返回TopologyError
func (s *Schedule) Add(d *Departure) error {
	if d.Road.LaneSegment(d.Lane) == nil {
		return entity.NewTopologyError(d.Road.ID(), d.Lane, "departure lane does not exist")
	}
	if d.Options.Position < 0 || d.Options.Position > d.Road.Length() {
		return entity.NewTopologyError(d.Road.ID(), d.Lane, "departure position %.2f out of road range [0, %.2f]", d.Options.Position, d.Road.Length())
	}
	s.queue.Push(d, d.Time)
	return nil
}

// Len 尚未出发的请求数
func (s *Schedule) Len() int {
	return s.queue.Len()
}

// Delayed 因空间不足推迟的累计次数
func (s *Schedule) Delayed() int32 {
	return s.delayed
}

// Step 处理到期的出发请求
// 参数：t-当前时刻，vehicles-车辆登记表
// 返回：本步进入路网的车辆
func (s *Schedule) Step(t float64, vehicles *vehicle.VehicleManager) []*vehicle.Vehicle {
	var added []*vehicle.Vehicle
	var retry []*Departure
	for _, d := range s.queue.PopUntil(t) {
		l := d.Road.LaneSegment(d.Lane)
		if !fits(l, d.Options.Position, d.Prototype.Length, d.MinGap) {
			retry = append(retry, d)
			continue
		}
		v := vehicles.New(d.Prototype, d.Options)
		l.Insert(v)
		added = append(added, v)
	}
	for _, d := range retry {
		s.delayed++
		log.Debugf("departure on road %d lane %d at t=%.2f delayed: no space", d.Road.ID(), d.Lane, d.Time)
		s.queue.Push(d, d.Time)
	}
	return added
}
