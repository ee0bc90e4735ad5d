package vehicle

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/carfollow"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

const (
	stopLookaheadMin  = 100.0 // 停止线最小前瞻距离（米）
	stopLookaheadTime = 10.0  // 停止线前瞻时间（秒）
)

// Options 创建车辆时的初始状态
type Options struct {
	Position  float64 // 车尾位置
	Speed     float64 // 初始速度（障碍物总是0）
	ExitRoad  *int32  // 需要驶出的目标路段ID
	FixedLane *int32  // 固定目标车道
}

// Vehicle 车辆
// 功能：记录车辆的运动学状态，通过原型中的跟车模型与变道模型完成每一步的决策与积分
// 说明：位置为车尾在所在车道坐标系中的位置
type Vehicle struct {
	id    int32
	proto *Prototype

	lane     entity.ILane
	pos      float64
	speed    float64
	acc      float64
	accNext  float64 // UpdateAcc写入，CommitAcc后生效，保证同一步内所有车辆看到的都是上一步的加速度
	distance float64 // 累计行驶距离

	exitRoad  *int32
	fixedLane *int32

	// 变道状态
	lcFrom, lcTo entity.ILane
	lcRemaining  float64
	lcLast       entity.LaneChangeResult

	rng *randengine.Engine
}

func newVehicle(id int32, proto *Prototype, opts Options, rng *randengine.Engine) *Vehicle {
	v := &Vehicle{
		id:        id,
		proto:     proto,
		pos:       opts.Position,
		speed:     math.Max(opts.Speed, 0),
		exitRoad:  opts.ExitRoad,
		fixedLane: opts.FixedLane,
		rng:       rng,
	}
	if proto.Obstacle {
		v.speed = 0
	} else if proto.CarFollow.IsCellular() {
		v.speed = carfollow.SnapSpeed(proto.CarFollow, v.speed)
	}
	return v
}

func (v *Vehicle) String() string {
	laneID := "-"
	if v.lane != nil {
		laneID = v.lane.ID()
	}
	return fmt.Sprintf("Vehicle{id=%d, %s, lane=%s, pos=%.2f, v=%.2f}", v.id, v.proto.Label, laneID, v.pos, v.speed)
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) Label() string {
	return v.proto.Label
}

// Prototype 车辆原型
func (v *Vehicle) Prototype() *Prototype {
	return v.proto
}

func (v *Vehicle) Length() float64 {
	return v.proto.Length
}

func (v *Vehicle) Position() float64 {
	return v.pos
}

// FrontPosition 车头位置
func (v *Vehicle) FrontPosition() float64 {
	return v.pos + v.proto.Length
}

func (v *Vehicle) Speed() float64 {
	return v.speed
}

func (v *Vehicle) Acc() float64 {
	return v.acc
}

func (v *Vehicle) MaxDeceleration() float64 {
	return v.proto.MaxDeceleration
}

func (v *Vehicle) IsObstacle() bool {
	return v.proto.Obstacle
}

func (v *Vehicle) Lane() entity.ILane {
	return v.lane
}

// Distance 累计行驶距离
func (v *Vehicle) Distance() float64 {
	return v.distance
}

// InLaneChange 是否处于变道过程中
func (v *Vehicle) InLaneChange() bool {
	return v.lcRemaining > 0
}

// LaneChangeLanes 变道过程中的源车道与目标车道
func (v *Vehicle) LaneChangeLanes() (from, to entity.ILane) {
	return v.lcFrom, v.lcTo
}

// LastDecision 最近一次变道决策
func (v *Vehicle) LastDecision() entity.LaneChangeResult {
	return v.lcLast
}

// ExitRoadID 需要驶出的目标路段
// 说明：已经位于目标路段上时不再需要驶出
func (v *Vehicle) ExitRoadID() (int32, bool) {
	if v.exitRoad == nil {
		return 0, false
	}
	if v.lane != nil && v.lane.Road().ID() == *v.exitRoad {
		return 0, false
	}
	return *v.exitRoad, true
}

func (v *Vehicle) FixedTargetLane() (int32, bool) {
	if v.fixedLane == nil {
		return 0, false
	}
	return *v.fixedLane, true
}

func (v *Vehicle) SetLane(l entity.ILane) {
	v.lane = l
}

func (v *Vehicle) SetPosition(pos float64) {
	v.pos = pos
}

// AccIn 假想加速度
// 功能：假设车尾位于l的pos处、前车为front时的加速度，供变道模型评估使用
// 说明：不使用随机数流，不截断到最大减速度
func (v *Vehicle) AccIn(l entity.ILane, pos float64, front *entity.Neighbor) float64 {
	return v.accIn(l, pos, front, nil)
}

// accIn 加速度计算
// 算法说明：
// 1. 以车头位置查询瓶颈系数与限速，构造跟车模型输入
// 2. 位于超车车道时，迎面来车视为静止的前车
// 3. 前方有红灯（或能舒适停下的黄灯、车道封闭端）时，以停止线为静止前车再算一次取较小值
func (v *Vehicle) accIn(l entity.ILane, pos float64, front *entity.Neighbor, rng *randengine.Engine) float64 {
	if v.proto.Obstacle {
		return 0
	}
	cf := v.proto.CarFollow
	head := pos + v.proto.Length
	in := carfollow.FreeInput(v.speed)
	in.Rng = rng
	if road := l.Road(); road != nil {
		in.Alpha = road.AlphaAt(head)
		in.SpeedLimit = road.SpeedLimitAt(head)
	}
	if front != nil && front.Vehicle != entity.IVehicle(v) {
		in.Gap = front.Position - head
		in.DeltaV = v.speed - front.Speed()
		in.LeaderAcc = front.Vehicle.Acc()
	}
	if l.Index() == entity.OVERTAKING_LANE {
		if on := l.OncomingNeighbor(head); on != nil && on.Position-head < in.Gap {
			in.Gap = on.Position - head
			in.DeltaV = v.speed
			in.LeaderAcc = 0
		}
	}
	acc := cf.Acc(in)
	lookahead := math.Max(stopLookaheadMin, v.speed*stopLookaheadTime)
	if sl := l.NextStopLine(head, lookahead); sl != nil {
		gap := sl.Position - head
		canStop := gap > 0 && v.speed*v.speed <= 2*gap*v.proto.MaxDeceleration
		if sl.State == entity.LIGHT_STATE_RED || canStop {
			stop := in
			stop.Gap = gap
			stop.DeltaV = v.speed
			stop.LeaderAcc = 0
			stop.Rng = nil
			acc = math.Min(acc, cf.Acc(stop))
		}
	}
	return acc
}

// UpdateAcc 计算本步加速度
// 功能：以当前车道中的前车（可跨路段）计算加速度并写入缓冲区，连续模型截断到-maxDecel
// 说明：只读其他车辆的状态，可以按路段并行
func (v *Vehicle) UpdateAcc(dt float64) {
	if v.proto.Obstacle {
		v.accNext = 0
		return
	}
	acc := v.accIn(v.lane, v.pos, v.lane.FrontVehicleOf(v), v.rng)
	if !v.proto.CarFollow.IsCellular() {
		acc = math.Max(acc, -v.proto.MaxDeceleration)
	}
	v.accNext = acc
}

// CommitAcc 提交缓冲区中的加速度
func (v *Vehicle) CommitAcc() {
	v.acc = v.accNext
}

// DecideLaneChange 变道决策
func (v *Vehicle) DecideLaneChange() entity.LaneChangeResult {
	if v.proto.LaneChange == nil {
		v.lcLast = entity.LaneChangeResult{Decision: entity.LC_NONE}
	} else {
		v.lcLast = v.proto.LaneChange.Decide(v)
	}
	return v.lcLast
}

// StartLaneChange 开始变道
// 功能：记录源车道与目标车道并启动变道计时，车道间的实际移动由调用方通过暂存区完成
func (v *Vehicle) StartLaneChange(from, to entity.ILane) {
	v.lcFrom, v.lcTo = from, to
	if v.proto.LaneChange != nil {
		v.lcRemaining = v.proto.LaneChange.Duration
	}
	if v.lcRemaining <= 0 {
		v.lcFrom, v.lcTo = nil, nil
	}
	log.Debugf("vehicle %d changes lane %s -> %s", v.id, from.ID(), to.ID())
}

// Integrate 更新位置与速度
// 算法说明：
// 1. 连续模型：x += v·dt + ½a·dt²，v += a·dt；若本步内速度减到0，则位移为-v²/(2a)且v=0
// 2. 元胞自动机模型（dt=1）：速度对齐到元胞网格后加上本步变化量，再以新速度前进
// 3. 推进变道计时
func (v *Vehicle) Integrate(dt float64) {
	if v.lcRemaining > 0 {
		v.lcRemaining -= dt
		if v.lcRemaining <= 0 {
			v.lcRemaining = 0
			v.lcFrom, v.lcTo = nil, nil
		}
	}
	if v.proto.Obstacle {
		return
	}
	var dx float64
	switch vNew := v.speed + v.acc*dt; {
	case v.proto.CarFollow.IsCellular():
		cf := v.proto.CarFollow
		v.speed = carfollow.SnapSpeed(cf, carfollow.SnapSpeed(cf, v.speed)+v.acc)
		dx = v.speed
	case vNew < 0:
		dx = -0.5 * v.speed * v.speed / v.acc
		v.speed = 0
	default:
		dx = v.speed*dt + 0.5*v.acc*dt*dt
		v.speed = vNew
	}
	v.pos += dx
	v.distance += dx
}
