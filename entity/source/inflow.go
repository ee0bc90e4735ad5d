package source

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
)

// entryHeadway 入口处的最小车头时距（秒），不满足时新车以前车速度进入
const entryHeadway = 1.0

// InflowConfig 恒定流量交通源配置
type InflowConfig struct {
	Rate     float64 // 流量（辆/小时）
	Speed    float64 // 进入速度（米/秒）
	Lanes    []int32 // 可用车道，为空时使用全部普通行车道
	ExitRoad *int32  // 生成车辆的目标出口路段
	MinGap   float64 // 进入时前后最小净间距
}

// Inflow 恒定流量交通源
// 功能：在路段起点按给定流量持续生成车辆
// 说明：累计的待进入车辆数nWait每步增加rate*dt，每满1辆尝试插入一次；
// 所有候选车道都没有足够空间时车辆在路网外排队，下一步再试
type Inflow struct {
	road      *road.Road
	lanes     []*lane.Lane
	rate      float64 // 辆/秒
	speed     float64
	exitRoad  *int32
	minGap    float64
	generator *vehicle.Generator

	nWait    float64
	pending  *vehicle.Prototype // 已抽取但尚未进入的原型，保证随机数流与排队无关
	injected int32
}

// NewInflow 创建恒定流量交通源
// 参数：r-路段，cfg-配置，g-原型生成器
// 返回：交通源，流量为负、速度为负或车道不存在时返回ConfigError
func NewInflow(r *road.Road, cfg InflowConfig, g *vehicle.Generator) (*Inflow, error) {
	name := fmt.Sprintf("source@road %d", r.ID())
	if !(cfg.Rate >= 0) {
		return nil, entity.NewConfigError(name, "rate", "must be non-negative, got %v", cfg.Rate)
	}
	if !(cfg.Speed >= 0) {
		return nil, entity.NewConfigError(name, "speed", "must be non-negative, got %v", cfg.Speed)
	}
	if cfg.MinGap < 0 {
		return nil, entity.NewConfigError(name, "min_gap", "must be non-negative, got %v", cfg.MinGap)
	}
	var lanes []*lane.Lane
	if len(cfg.Lanes) == 0 {
		lanes = lo.Filter(r.Lanes(), func(l *lane.Lane, _ int) bool { return l.Type() == entity.LANE_TYPE_TRAFFIC })
	} else {
		for _, idx := range cfg.Lanes {
			l := r.LaneSegment(idx)
			if l == nil || idx == entity.OVERTAKING_LANE {
				return nil, entity.NewConfigError(name, "lanes", "lane %d does not exist", idx)
			}
			lanes = append(lanes, l)
		}
	}
	if len(lanes) == 0 {
		return nil, entity.NewConfigError(name, "lanes", "no lane available for injection")
	}
	return &Inflow{
		road:      r,
		lanes:     lanes,
		rate:      cfg.Rate / 3600,
		speed:     cfg.Speed,
		exitRoad:  cfg.ExitRoad,
		minGap:    cfg.MinGap,
		generator: g,
	}, nil
}

// Road 交通源所在路段
func (s *Inflow) Road() *road.Road {
	return s.road
}

// Waiting 在路网外排队的车辆数
func (s *Inflow) Waiting() int {
	return int(s.nWait)
}

// Injected 累计进入路网的车辆数
func (s *Inflow) Injected() int32 {
	return s.injected
}

// Step 推进交通源
// 功能：累计待进入车辆并尽可能插入路网
// 参数：dt-时间步长，vehicles-车辆登记表
// 返回：本步进入路网的车辆
// 算法说明：
// 1. nWait += rate·dt
// 2. nWait>=1时抽取原型，在入口净间距最大的车道起点插入
// 3. 最大净间距仍小于车长+minGap时停止，车辆继续排队
// 4. 与前车车头时距不足entryHeadway时以min(speed, 前车速度)进入
func (s *Inflow) Step(dt float64, vehicles *vehicle.VehicleManager) []*vehicle.Vehicle {
	s.nWait += s.rate * dt
	var added []*vehicle.Vehicle
	for s.nWait >= 1 {
		if s.pending == nil {
			s.pending = s.generator.Next()
		}
		proto := s.pending
		l, gap := s.bestLane(proto.Length)
		if l == nil {
			break
		}
		speed := s.speed
		if front := l.FrontNeighbor(0); front != nil && gap < speed*entryHeadway {
			speed = math.Min(speed, front.Speed())
		}
		v := vehicles.New(proto, vehicle.Options{Position: 0, Speed: speed, ExitRoad: s.exitRoad})
		l.Insert(v)
		added = append(added, v)
		s.pending = nil
		s.nWait--
		s.injected++
	}
	return added
}

// bestLane 入口前方净间距最大且能容纳车辆的车道
func (s *Inflow) bestLane(length float64) (*lane.Lane, float64) {
	var best *lane.Lane
	bestGap := math.Inf(-1)
	for _, l := range s.lanes {
		if !fits(l, 0, length, s.minGap) {
			continue
		}
		if front, _ := entryGap(l, 0, length); front > bestGap {
			best, bestGap = l, front
		}
	}
	if best == nil {
		log.Debugf("road %d: inflow blocked, %d vehicles waiting", s.road.ID(), s.Waiting())
	}
	return best, bestGap
}
