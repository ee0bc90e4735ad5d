package entity

import (
	"fmt"
)

// 变道方向常量
// 车道编号从内侧（左侧）的1开始向外侧（右侧）递增，0号车道为借对向车道超车使用的虚拟车道
const (
	TO_LEFT   = -1 // 向左变道（车道编号减小）
	NO_CHANGE = 0  // 不变道
	TO_RIGHT  = +1 // 向右变道（车道编号增大）

	OVERTAKING_LANE = 0 // 超车车道编号
	MOST_INNER_LANE = 1 // 最内侧车道编号
)

// LaneType 车道类型
type LaneType int32

const (
	LANE_TYPE_TRAFFIC    LaneType = iota + 1 // 普通行车道
	LANE_TYPE_ENTRANCE                       // 入口（加速）车道
	LANE_TYPE_EXIT                           // 出口车道
	LANE_TYPE_SHOULDER                       // 路肩
	LANE_TYPE_RESTRICTED                     // 限定车辆使用的车道
	LANE_TYPE_OVERTAKING                     // 超车车道（内部使用，0号车道）
)

var laneTypeNames = map[LaneType]string{
	LANE_TYPE_TRAFFIC:    "TRAFFIC",
	LANE_TYPE_ENTRANCE:   "ENTRANCE",
	LANE_TYPE_EXIT:       "EXIT",
	LANE_TYPE_SHOULDER:   "SHOULDER",
	LANE_TYPE_RESTRICTED: "RESTRICTED",
	LANE_TYPE_OVERTAKING: "OVERTAKING",
}

func (t LaneType) String() string {
	if name, ok := laneTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("LaneType(%d)", int32(t))
}

// ParseLaneType 解析车道类型名称
// 功能：将配置文件中的车道类型字符串转换为LaneType
// 参数：name-车道类型名称（大小写敏感，与String()输出一致）
// 返回：车道类型，是否解析成功
// 说明：OVERTAKING为内部类型，不允许在输入中出现
func ParseLaneType(name string) (LaneType, bool) {
	for t, n := range laneTypeNames {
		if n == name && t != LANE_TYPE_OVERTAKING {
			return t, true
		}
	}
	return 0, false
}

// Neighbor 邻车查询结果
// 功能：包装邻车及其换算到查询车道坐标系下的车尾位置
// 说明：跨路段查询时Position与Vehicle.Position()不同，调用方总是应该使用Position
type Neighbor struct {
	Vehicle  IVehicle
	Position float64 // 换算到查询车道坐标系下的车尾位置
}

// FrontPosition 换算后的车头位置
func (n *Neighbor) FrontPosition() float64 {
	return n.Position + n.Vehicle.Length()
}

// Speed 邻车速度
func (n *Neighbor) Speed() float64 {
	return n.Vehicle.Speed()
}

// Alpha 流量守恒瓶颈的修正系数
// 功能：对跟车模型的安全时距、期望速度与最大加速度参数进行乘性修正
// 说明：瓶颈区域外三个系数均为1
type Alpha struct {
	T  float64 // 安全时距系数
	V0 float64 // 期望速度系数
	A  float64 // 最大加速度系数
}

// NoAlpha 不做修正的系数
var NoAlpha = Alpha{T: 1, V0: 1, A: 1}

// LightState 信号灯状态
type LightState int32

const (
	LIGHT_STATE_GREEN LightState = iota
	LIGHT_STATE_YELLOW
	LIGHT_STATE_RED
)

// StopLine 前方需要停车的位置
// 功能：描述车辆前方的信号灯停止线或车道封闭端
type StopLine struct {
	Position float64    // 停止线在查询车道坐标系下的位置
	State    LightState // 停止线的状态（车道封闭端总是红灯）
}

// entity/vehicle/vehicle.go的依赖倒置
type IVehicle interface {
	// 自身属性

	ID() int32                // 车辆ID
	Label() string            // 车辆原型名称
	Length() float64          // 车长
	Position() float64        // 车尾位置（所在车道坐标系）
	FrontPosition() float64   // 车头位置
	Speed() float64           // 速度
	Acc() float64             // 当前步的加速度
	MaxDeceleration() float64 // 最大减速度（正数）
	IsObstacle() bool         // 是否为静止障碍物
	Lane() ILane              // 所在车道
	InLaneChange() bool       // 是否处于变道过程中

	ExitRoadID() (int32, bool)      // 需要驶出的目标路段ID
	FixedTargetLane() (int32, bool) // 外部指定的固定目标车道

	// AccIn 计算假设本车车尾位于lane的pos处、前车为front时的加速度
	// front为nil表示无前车（自由流）
	AccIn(lane ILane, pos float64, front *Neighbor) float64

	// 容器维护

	SetLane(lane ILane)      // 设置所在车道（仅由车道容器调用）
	SetPosition(pos float64) // 设置车尾位置（仅由边界换算调用）

	// 仿真循环

	UpdateAcc(dt float64)                 // 计算加速度（写入缓冲区）
	CommitAcc()                           // 提交缓冲区中的加速度
	DecideLaneChange() LaneChangeResult   // 做出变道决策
	StartLaneChange(from ILane, to ILane) // 开始变道
	Integrate(dt float64)                 // 更新位置与速度
}

// entity/lane/lane.go的依赖倒置
type ILane interface {
	ID() string           // 车道标识，格式为{路段ID}/{车道编号}
	Road() IRoad          // 所属路段
	Index() int32         // 车道编号
	Type() LaneType       // 车道类型
	Length() float64      // 车道长度（等于路段长度）
	Sink() ILane          // 下游车道
	Source() ILane        // 上游车道
	IsAbsorbing() bool    // 是否为吸收型终点
	HasClosedEnd() bool   // 车道末端是否封闭（车辆需在末端前停车）
	Len() int             // 车辆数
	Vehicles() []IVehicle // 按车尾位置严格递减排列的车辆

	FrontNeighbor(pos float64) *Neighbor           // 位置严格大于pos的最近车辆
	RearNeighbor(pos float64) *Neighbor            // 位置小于等于pos的最近车辆
	FrontVehicleOf(v IVehicle) *Neighbor           // v的前车
	RearVehicleOf(v IVehicle) *Neighbor            // v的后车
	NextStopLine(pos, lookahead float64) *StopLine // pos前方lookahead范围内的停止线
	OncomingNeighbor(pos float64) *Neighbor        // 对向路段1号车道中迎面驶来的最近车辆（仅超车车道有意义）
}

// entity/road/road.go的依赖倒置
type IRoad interface {
	ID() int32
	UserID() string
	Length() float64
	LaneCount() int32
	Lane(index int32) ILane // 按编号获取车道，不存在时返回nil
	Peer() IRoad            // 对向路段
	AlphaAt(pos float64) Alpha
	SpeedLimitAt(pos float64) float64
	RestrictedLane(label string) (int32, bool) // 该原型在本路段被限定使用的车道
	ExitLaneTo(roadID int32) (int32, bool)     // 通往roadID的出口车道编号
	HasLightWithin(start, end float64) bool
	NextLight(from, to float64) *StopLine // (from, to]范围内第一个非绿灯的停止线
}
