package road

import (
	"fmt"
	"slices"

	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// Bottleneck 流量守恒瓶颈
// 功能：在[Start, End)范围内对跟车模型参数做乘性修正，模拟坡道、弯道等降低通行能力的因素
type Bottleneck struct {
	Start, End float64
	Alpha      entity.Alpha
}

// SpeedLimit 限速区段
type SpeedLimit struct {
	Start, End float64
	Limit      float64 // 米/秒
}

// Restriction 限定车道规则
// 功能：Labels中的车辆原型在本路段必须使用Lane号车道，Labels为空表示适用于所有车辆
type Restriction struct {
	Lane   int32
	Labels []string
}

// Applies 规则是否适用于该原型
func (rs Restriction) Applies(label string) bool {
	return len(rs.Labels) == 0 || slices.Contains(rs.Labels, label)
}

func (r *Road) checkRange(what string, start, end float64) error {
	if start < 0 || end > r.length || start >= end {
		return entity.NewConfigError(fmt.Sprintf("road %d", r.id), what,
			"range [%.2f, %.2f) is not inside [0, %.2f]", start, end, r.length)
	}
	return nil
}

// AddBottleneck 添加瓶颈
// 返回：区间越界或系数非正时返回ConfigError
func (r *Road) AddBottleneck(b Bottleneck) error {
	if err := r.checkRange("bottleneck", b.Start, b.End); err != nil {
		return err
	}
	if b.Alpha.T <= 0 || b.Alpha.V0 <= 0 || b.Alpha.A <= 0 {
		return entity.NewConfigError(fmt.Sprintf("road %d", r.id), "bottleneck", "alpha factors must be positive, got %+v", b.Alpha)
	}
	r.bottlenecks = append(r.bottlenecks, b)
	return nil
}

// AddSpeedLimit 添加限速区段
func (r *Road) AddSpeedLimit(s SpeedLimit) error {
	if err := r.checkRange("speed_limit", s.Start, s.End); err != nil {
		return err
	}
	if s.Limit <= 0 {
		return entity.NewConfigError(fmt.Sprintf("road %d", r.id), "speed_limit", "limit must be positive, got %v", s.Limit)
	}
	r.speedLimits = append(r.speedLimits, s)
	return nil
}

// AddRestriction 添加限定车道规则
// 返回：车道不存在时返回TopologyError
func (r *Road) AddRestriction(rs Restriction) error {
	if rs.Lane < entity.MOST_INNER_LANE || rs.Lane > r.LaneCount() {
		return entity.NewTopologyError(r.id, rs.Lane, "restricted lane does not exist")
	}
	r.restrictions = append(r.restrictions, rs)
	return nil
}

// AddLight 添加信号灯
// 说明：信号灯按位置排序保存，便于前方停止线查询
func (r *Road) AddLight(tl *TrafficLight) error {
	if tl.Position <= 0 || tl.Position > r.length {
		return entity.NewConfigError(fmt.Sprintf("road %d", r.id), "light", "position %.2f is not inside (0, %.2f]", tl.Position, r.length)
	}
	r.lights = append(r.lights, tl)
	slices.SortFunc(r.lights, func(a, b *TrafficLight) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		}
		return 0
	})
	return nil
}

// Lights 路段上的信号灯
func (r *Road) Lights() []*TrafficLight {
	return r.lights
}
