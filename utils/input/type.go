package input

import (
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
)

// File 场景文件的根结构
// 功能：描述路网、车辆原型、交通源与初始车辆
// 说明：路段引用（RoadRef）既可以是用户ID也可以是数字ID，优先按用户ID解析
type File struct {
	Prototypes []vehicle.PrototypeConfig `yaml:"prototypes"`
	Roads      []RoadConfig              `yaml:"roads"`
	Links      []LinkConfig              `yaml:"links,omitempty"`
	Peers      []PeerConfig              `yaml:"peers,omitempty"`
	Sources    []SourceConfig            `yaml:"sources,omitempty"`
	Departures []DepartureConfig         `yaml:"departures,omitempty"`
	Vehicles   []VehicleConfig           `yaml:"vehicles,omitempty"`
}

// RoadRef 路段引用
type RoadRef = string

// RoadConfig 路段配置
type RoadConfig struct {
	ID           int32               `yaml:"id"`
	UserID       string              `yaml:"user_id,omitempty"`
	Length       float64             `yaml:"length"`
	Lanes        []string            `yaml:"lanes"` // 按编号1..n依次给出车道类型
	Bottlenecks  []BottleneckConfig  `yaml:"bottlenecks,omitempty"`
	SpeedLimits  []SpeedLimitConfig  `yaml:"speed_limits,omitempty"`
	Lights       []LightConfig       `yaml:"lights,omitempty"`
	Restrictions []RestrictionConfig `yaml:"restrictions,omitempty"`
	Geometry     [][]float64         `yaml:"geometry,omitempty"` // 中心线折线[[x, y], ...]
}

// BottleneckConfig 瓶颈配置，未给出的系数为1
type BottleneckConfig struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	AlphaT  float64 `yaml:"alpha_t,omitempty"`
	AlphaV0 float64 `yaml:"alpha_v0,omitempty"`
	AlphaA  float64 `yaml:"alpha_a,omitempty"`
}

// SpeedLimitConfig 限速配置
type SpeedLimitConfig struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Limit float64 `yaml:"limit"` // 米/秒
}

// LightConfig 信号灯配置
type LightConfig struct {
	Position float64       `yaml:"position"`
	Offset   float64       `yaml:"offset,omitempty"`
	Phases   []PhaseConfig `yaml:"phases"`
}

// PhaseConfig 信号灯相位配置
type PhaseConfig struct {
	State    string  `yaml:"state"` // GREEN/YELLOW/RED
	Duration float64 `yaml:"duration"`
}

// RestrictionConfig 限定车道配置
type RestrictionConfig struct {
	Lane   int32    `yaml:"lane"`
	Labels []string `yaml:"labels,omitempty"`
}

// LinkConfig 车道连接配置
type LinkConfig struct {
	From     RoadRef `yaml:"from"`
	FromLane int32   `yaml:"from_lane"`
	To       RoadRef `yaml:"to"`
	ToLane   int32   `yaml:"to_lane"`
}

// PeerConfig 对向路段配置
type PeerConfig struct {
	A RoadRef `yaml:"a"`
	B RoadRef `yaml:"b"`
}

// SourceConfig 恒定流量交通源配置
type SourceConfig struct {
	Road       RoadRef            `yaml:"road"`
	Rate       float64            `yaml:"rate"` // 辆/小时
	Speed      float64            `yaml:"speed"`
	Lanes      []int32            `yaml:"lanes,omitempty"`
	ExitRoad   RoadRef            `yaml:"exit_road,omitempty"`
	MinGap     float64            `yaml:"min_gap,omitempty"`
	Prototypes map[string]float64 `yaml:"prototypes,omitempty"` // 原型名称到比例，为空时使用原型自身的fraction
}

// VehicleConfig 初始车辆配置
type VehicleConfig struct {
	Road      RoadRef `yaml:"road"`
	Lane      int32   `yaml:"lane"`
	Prototype string  `yaml:"prototype"`
	Position  float64 `yaml:"position"`
	Speed     float64 `yaml:"speed"`
	ExitRoad  RoadRef `yaml:"exit_road,omitempty"`
	FixedLane *int32  `yaml:"fixed_lane,omitempty"`
}

// DepartureConfig 按时刻出发的车辆配置
type DepartureConfig struct {
	VehicleConfig `yaml:",inline"`
	Time          float64 `yaml:"time"`
	MinGap        float64 `yaml:"min_gap,omitempty"`
}
