package road

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
)

// LaneDef 路段中一条车道的定义
type LaneDef struct {
	Index int32           // 车道编号，从1开始连续编号
	Type  entity.LaneType // 车道类型
}

// TrafficLanes 生成n条普通行车道的定义
func TrafficLanes(n int32) []LaneDef {
	defs := make([]LaneDef, n)
	for i := range defs {
		defs[i] = LaneDef{Index: int32(i) + 1, Type: entity.LANE_TYPE_TRAFFIC}
	}
	return defs
}

// Road 路段
// 功能：单向的一段道路，持有其全部车道，并携带瓶颈、限速、信号灯、限定车道等属性
// 说明：构建完成并冻结后拓扑不再变化，仅车辆在车道上插入/移除
type Road struct {
	id     int32
	userID string
	length float64

	lanes []*lane.Lane // lanes[i]为i号车道，lanes[0]为超车车道（仅设置对向路段后存在）
	peer  *Road        // 对向路段

	bottlenecks  []Bottleneck
	speedLimits  []SpeedLimit
	lights       []*TrafficLight
	restrictions []Restriction
	geometry     []Point
}

// NewRoad 创建路段
// 功能：校验车道编号约定并创建全部车道
// 参数：id-路段ID，userID-用户可见ID（可为空），length-长度，defs-车道定义
// 返回：路段，车道编号不合法时返回ConfigError
// 算法说明：
// 1. 长度必须为正
// 2. 车道编号排序后必须为1..n的连续整数，0号车道保留给超车车道，不得作为行车道出现
func NewRoad(id int32, userID string, length float64, defs []LaneDef) (*Road, error) {
	name := fmt.Sprintf("road %d", id)
	if !(length > 0) {
		return nil, entity.NewConfigError(name, "length", "must be positive, got %v", length)
	}
	if len(defs) == 0 {
		return nil, entity.NewConfigError(name, "lanes", "at least one lane is required")
	}
	sorted := append([]LaneDef(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	if sorted[0].Index < entity.MOST_INNER_LANE {
		return nil, entity.NewConfigError(name, "lanes", "lane index %d is reserved, minimum lane index is %d", sorted[0].Index, entity.MOST_INNER_LANE)
	}
	for i, d := range sorted {
		if d.Index != int32(i)+entity.MOST_INNER_LANE {
			return nil, entity.NewConfigError(name, "lanes", "lane indices must be contiguous from %d, got %v",
				entity.MOST_INNER_LANE, lo.Map(sorted, func(d LaneDef, _ int) int32 { return d.Index }))
		}
		if d.Type == entity.LANE_TYPE_OVERTAKING || laneTypeInvalid(d.Type) {
			return nil, entity.NewConfigError(name, "lanes", "lane %d has invalid type %v", d.Index, d.Type)
		}
	}
	r := &Road{
		id:     id,
		userID: userID,
		length: length,
		lanes:  make([]*lane.Lane, len(sorted)+1),
	}
	for _, d := range sorted {
		r.lanes[d.Index] = lane.New(r, d.Index, d.Type, length)
	}
	return r, nil
}

func laneTypeInvalid(t entity.LaneType) bool {
	return t < entity.LANE_TYPE_TRAFFIC || t > entity.LANE_TYPE_OVERTAKING
}

func (r *Road) String() string {
	return fmt.Sprintf("Road{id=%d, user=%q, len=%.1f, lanes=%d}", r.id, r.userID, r.length, r.LaneCount())
}

func (r *Road) ID() int32 {
	return r.id
}

func (r *Road) UserID() string {
	return r.userID
}

func (r *Road) Length() float64 {
	return r.length
}

// LaneCount 行车道数量（不含超车车道）
func (r *Road) LaneCount() int32 {
	return int32(len(r.lanes) - 1)
}

// Lane 按编号获取车道
// 返回：车道，编号不存在（包括未设置对向路段时的0号车道）时返回nil
func (r *Road) Lane(index int32) entity.ILane {
	if l := r.LaneSegment(index); l != nil {
		return l
	}
	return nil
}

// LaneSegment 按编号获取车道（具体类型）
func (r *Road) LaneSegment(index int32) *lane.Lane {
	if index < 0 || int(index) >= len(r.lanes) {
		return nil
	}
	return r.lanes[index]
}

// Lanes 全部行车道，按编号从1开始排列
func (r *Road) Lanes() []*lane.Lane {
	return r.lanes[1:]
}

// AllLanes 全部车道，包括存在的超车车道
func (r *Road) AllLanes() []*lane.Lane {
	if r.lanes[0] == nil {
		return r.lanes[1:]
	}
	return r.lanes
}

// Peer 对向路段
func (r *Road) Peer() entity.IRoad {
	if r.peer == nil {
		return nil
	}
	return r.peer
}

// PeerRoad 对向路段（具体类型）
func (r *Road) PeerRoad() *Road {
	return r.peer
}

// AddVehicle 将车辆插入指定车道
// 功能：车辆生成方的注入入口，车辆位置需已设置
// 返回：车道不存在时返回TopologyError
func (r *Road) AddVehicle(v entity.IVehicle, laneIndex int32) error {
	l := r.LaneSegment(laneIndex)
	if l == nil {
		return entity.NewTopologyError(r.id, laneIndex, "lane does not exist")
	}
	if v.Position() < 0 || v.Position() > r.length {
		return entity.NewTopologyError(r.id, laneIndex, "vehicle %d position %.2f out of road range [0, %.2f]", v.ID(), v.Position(), r.length)
	}
	l.Insert(v)
	return nil
}

// Vehicles 路段上所有车辆（按车道编号、位置递减排列）
func (r *Road) Vehicles() []entity.IVehicle {
	return lo.FlatMap(r.AllLanes(), func(l *lane.Lane, _ int) []entity.IVehicle { return l.Vehicles() })
}

// VehicleCount 路段上车辆数
func (r *Road) VehicleCount() int {
	return lo.SumBy(r.AllLanes(), func(l *lane.Lane) int { return l.Len() })
}

// ExitLaneTo 通往指定路段的出口车道
// 功能：查找本路段中类型为EXIT且下游车道属于roadID的车道
// 返回：出口车道编号，是否存在
func (r *Road) ExitLaneTo(roadID int32) (int32, bool) {
	for _, l := range r.Lanes() {
		if l.Type() != entity.LANE_TYPE_EXIT {
			continue
		}
		if sink := l.SinkLane(); sink != nil && sink.Road().ID() == roadID {
			return l.Index(), true
		}
	}
	return 0, false
}

// Update 更新路段上的信号灯
func (r *Road) Update(dt float64) {
	for _, tl := range r.lights {
		tl.Update(dt)
	}
}

// NextLight (from, to]范围内第一个处于红灯或黄灯的停止线
func (r *Road) NextLight(from, to float64) *entity.StopLine {
	for _, tl := range r.lights {
		if tl.Position <= from || tl.Position > to {
			continue
		}
		if s := tl.State(); s != entity.LIGHT_STATE_GREEN {
			return &entity.StopLine{Position: tl.Position, State: s}
		}
	}
	return nil
}

// HasLightWithin [start, end]范围内是否存在信号灯（不论状态）
func (r *Road) HasLightWithin(start, end float64) bool {
	return lo.ContainsBy(r.lights, func(tl *TrafficLight) bool {
		return tl.Position >= start && tl.Position <= end
	})
}

// AlphaAt 位置pos处的瓶颈修正系数
// 说明：多个瓶颈重叠时系数相乘
func (r *Road) AlphaAt(pos float64) entity.Alpha {
	alpha := entity.NoAlpha
	for _, b := range r.bottlenecks {
		if pos >= b.Start && pos < b.End {
			alpha.T *= b.Alpha.T
			alpha.V0 *= b.Alpha.V0
			alpha.A *= b.Alpha.A
		}
	}
	return alpha
}

// SpeedLimitAt 位置pos处的限速
// 返回：限速（米/秒），无限速时返回+Inf
func (r *Road) SpeedLimitAt(pos float64) float64 {
	limit := math.Inf(1)
	for _, s := range r.speedLimits {
		if pos >= s.Start && pos < s.End {
			limit = math.Min(limit, s.Limit)
		}
	}
	return limit
}

// RestrictedLane 车辆原型在本路段被限定使用的车道
// 返回：车道编号，是否存在限定规则
func (r *Road) RestrictedLane(label string) (int32, bool) {
	for _, rs := range r.restrictions {
		if rs.Applies(label) {
			return rs.Lane, true
		}
	}
	return 0, false
}
