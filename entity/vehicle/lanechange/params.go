// 变道决策模型：强制变道规则 + MOBIL自由变道准则 + 借对向车道超车
package lanechange

import (
	"github.com/tsinghua-fib-lab/lanesim/entity"
)

const modelName = "LANE_CHANGE"

// Params 变道模型参数
type Params struct {
	Politeness       float64 `yaml:"politeness"`        // 礼让系数p
	Threshold        float64 `yaml:"threshold"`         // 激励阈值（米/秒²）
	Bias             float64 `yaml:"bias"`              // 靠右行驶偏置（米/秒²）
	SafeDeceleration float64 `yaml:"safe_deceleration"` // 新后车允许的最大减速度bSafe（正数）
	MinGap           float64 `yaml:"min_gap"`           // 目标车道前后最小净间距（米）
	Duration         float64 `yaml:"duration"`          // 变道持续时间（秒），期间不再做决策

	ExitConsider   float64 `yaml:"exit_consider"`   // 距出口该距离内开始向出口车道变道
	ExitMandatory  float64 `yaml:"exit_mandatory"`  // 距出口该距离内必须位于出口车道
	CourtesyBias   float64 `yaml:"courtesy_bias"`   // 为汇入车辆让行时向左变道的额外激励
	CourtesyRange  float64 `yaml:"courtesy_range"`  // 汇入车辆的关注范围（米）
	EntranceFactor float64 `yaml:"entrance_factor"` // 入口车道偏置的作用距离（米）

	Overtaking            bool    `yaml:"overtaking"`              // 是否允许借对向车道超车
	OvertakeDistance      float64 `yaml:"overtake_distance"`       // 完成超车所需的前方均质路段长度（米）
	OvertakeMinSeparation float64 `yaml:"overtake_min_separation"` // 与对向超车车辆的最小纵向间隔（米）

	PreferredLanes map[string]int32 `yaml:"preferred_lanes"` // 按原型名称指定偏好车道，非空时使用PreferredLaneBias
}

// DefaultParams 默认参数
func DefaultParams() Params {
	return Params{
		Politeness:       0.1,
		Threshold:        0.2,
		Bias:             0.3,
		SafeDeceleration: 4,
		MinGap:           2,
		Duration:         0,

		ExitConsider:   500,
		ExitMandatory:  300,
		CourtesyBias:   1,
		CourtesyRange:  100,
		EntranceFactor: 10,

		Overtaking:            false,
		OvertakeDistance:      300,
		OvertakeMinSeparation: 200,
	}
}

// UnmarshalYAML 未出现在配置中的字段保留默认值
func (p *Params) UnmarshalYAML(unmarshal func(any) error) error {
	type plain Params
	d := plain(DefaultParams())
	if err := unmarshal(&d); err != nil {
		return err
	}
	*p = Params(d)
	return nil
}

// Validate 参数校验
// 参数：maxDecel-车辆物理最大减速度
// 返回：参数非法或bSafe大于最大减速度时返回ConfigError
func (p Params) Validate(maxDecel float64) error {
	for _, kv := range []struct {
		key string
		v   float64
	}{
		{"politeness", p.Politeness},
		{"threshold", p.Threshold},
		{"bias", p.Bias},
		{"min_gap", p.MinGap},
		{"duration", p.Duration},
		{"courtesy_bias", p.CourtesyBias},
		{"courtesy_range", p.CourtesyRange},
		{"overtake_min_separation", p.OvertakeMinSeparation},
	} {
		if !(kv.v >= 0) {
			return entity.NewConfigError(modelName, kv.key, "must be non-negative, got %v", kv.v)
		}
	}
	if !(p.SafeDeceleration > 0) {
		return entity.NewConfigError(modelName, "safe_deceleration", "must be positive, got %v", p.SafeDeceleration)
	}
	if !(maxDecel > 0) {
		return entity.NewConfigError(modelName, "max_deceleration", "must be positive, got %v", maxDecel)
	}
	if p.SafeDeceleration > maxDecel {
		return entity.NewConfigError(modelName, "safe_deceleration",
			"safe deceleration %v exceeds the vehicle's maximum deceleration %v", p.SafeDeceleration, maxDecel)
	}
	if !(p.EntranceFactor > 0) {
		return entity.NewConfigError(modelName, "entrance_factor", "must be positive, got %v", p.EntranceFactor)
	}
	if !(p.ExitMandatory >= 0) || p.ExitConsider < p.ExitMandatory {
		return entity.NewConfigError(modelName, "exit_consider",
			"need exit_consider >= exit_mandatory >= 0, got %v and %v", p.ExitConsider, p.ExitMandatory)
	}
	if p.Overtaking && !(p.OvertakeDistance > 0) {
		return entity.NewConfigError(modelName, "overtake_distance", "must be positive when overtaking is enabled, got %v", p.OvertakeDistance)
	}
	for label, lane := range p.PreferredLanes {
		if lane < entity.MOST_INNER_LANE {
			return entity.NewConfigError(modelName, "preferred_lanes", "preferred lane %d for %q is not a traffic lane", lane, label)
		}
	}
	return nil
}
