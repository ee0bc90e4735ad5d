package vehicle

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/carfollow"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/lanechange"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

// CarFollowConfig 跟车模型配置
type CarFollowConfig struct {
	Model  string             `yaml:"model"`
	Params map[string]float64 `yaml:"params"`
}

// PrototypeConfig 车辆原型配置
type PrototypeConfig struct {
	Label           string             `yaml:"label"`
	Length          float64            `yaml:"length"`
	MaxDeceleration float64            `yaml:"max_deceleration"`
	Obstacle        bool               `yaml:"obstacle"`
	CarFollow       CarFollowConfig    `yaml:"car_follow"`
	LaneChange      *lanechange.Params `yaml:"lane_change"` // 为空时使用默认参数
	Fraction        float64            `yaml:"fraction"`    // 交通源生成该原型的比例
}

// Prototype 车辆原型
// 功能：同一原型的车辆共享车长、最大减速度以及跟车、变道模型实例
type Prototype struct {
	Label           string
	Length          float64
	MaxDeceleration float64
	Obstacle        bool // 静止障碍物（如入口渐变段末端），不计算加速度也不移动
	CarFollow       carfollow.Model
	LaneChange      *lanechange.Model
}

// NewPrototype 根据配置创建车辆原型
// 功能：构造跟车模型与变道模型，校验参数一致性
// 参数：cfg-原型配置，dt-仿真步长
// 返回：车辆原型，参数非法、元胞自动机模型步长不为1时返回ConfigError
func NewPrototype(cfg PrototypeConfig, dt float64) (*Prototype, error) {
	name := fmt.Sprintf("prototype %q", cfg.Label)
	if cfg.Label == "" {
		return nil, entity.NewConfigError("prototype", "label", "must not be empty")
	}
	if cfg.Obstacle {
		if cfg.Length < 0 {
			return nil, entity.NewConfigError(name, "length", "must be non-negative, got %v", cfg.Length)
		}
		return &Prototype{Label: cfg.Label, Length: cfg.Length, MaxDeceleration: cfg.MaxDeceleration, Obstacle: true}, nil
	}
	if !(cfg.Length > 0) {
		return nil, entity.NewConfigError(name, "length", "must be positive, got %v", cfg.Length)
	}
	if !(cfg.MaxDeceleration > 0) {
		return nil, entity.NewConfigError(name, "max_deceleration", "must be positive, got %v", cfg.MaxDeceleration)
	}
	cf, err := carfollow.New(cfg.CarFollow.Model, cfg.CarFollow.Params)
	if err != nil {
		return nil, err
	}
	if cf.IsCellular() && dt != 1 {
		return nil, entity.NewConfigError(cf.Name(), "dt", "cellular automaton models require dt = 1, got %v", dt)
	}
	lcParams := lanechange.DefaultParams()
	if cfg.LaneChange != nil {
		lcParams = *cfg.LaneChange
	}
	lc, err := lanechange.New(lcParams, cfg.MaxDeceleration)
	if err != nil {
		return nil, err
	}
	return &Prototype{
		Label:           cfg.Label,
		Length:          cfg.Length,
		MaxDeceleration: cfg.MaxDeceleration,
		CarFollow:       cf,
		LaneChange:      lc,
	}, nil
}

// Generator 按比例随机选择车辆原型
type Generator struct {
	prototypes []*Prototype
	fractions  []float64
	rng        *randengine.Engine
}

// NewGenerator 创建车辆原型生成器
// 参数：prototypes-候选原型，fractions-对应比例（无需归一化），rng-随机数流
// 返回：生成器，数量不一致、比例为负或全为0时返回ConfigError
func NewGenerator(prototypes []*Prototype, fractions []float64, rng *randengine.Engine) (*Generator, error) {
	if len(prototypes) == 0 || len(prototypes) != len(fractions) {
		return nil, entity.NewConfigError("generator", "fractions", "need one fraction per prototype, got %d prototypes and %d fractions", len(prototypes), len(fractions))
	}
	if lo.SomeBy(fractions, func(f float64) bool { return !(f >= 0) }) {
		return nil, entity.NewConfigError("generator", "fractions", "fractions must be non-negative, got %v", fractions)
	}
	if lo.Sum(fractions) <= 0 {
		return nil, entity.NewConfigError("generator", "fractions", "fractions must not all be zero")
	}
	return &Generator{prototypes: prototypes, fractions: fractions, rng: rng}, nil
}

// Next 按比例抽取一个原型
func (g *Generator) Next() *Prototype {
	return g.prototypes[g.rng.DiscreteDistribution(g.fractions)]
}

// Prototypes 候选原型
func (g *Generator) Prototypes() []*Prototype {
	return g.prototypes
}
