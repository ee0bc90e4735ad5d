// 跟车模型族：根据与前车的净间距、速度差与本车速度计算纵向加速度
package carfollow

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

// 模型名称
const (
	IDM       = "IDM"
	GIPPS     = "GIPPS"
	KRAUSS    = "KRAUSS"
	ACC       = "ACC"
	OVM_VDIFF = "OVM_VDIFF"
	NEWELL    = "NEWELL"
	NSM       = "NSM"
	KKW       = "KKW"
)

// Names 全部支持的模型名称
var Names = []string{IDM, GIPPS, KRAUSS, ACC, OVM_VDIFF, NEWELL, NSM, KKW}

// Input 加速度计算的输入
type Input struct {
	Gap        float64            // 与前车的净间距（米），无前车时为+Inf
	Speed      float64            // 本车速度（米/秒）
	DeltaV     float64            // 本车速度-前车速度
	LeaderAcc  float64            // 前车加速度
	Alpha      entity.Alpha       // 瓶颈修正系数
	SpeedLimit float64            // 限速，无限速时为+Inf
	Rng        *randengine.Engine // 随机模型使用的随机数流，可以为nil（退化为确定性模型）
}

// FreeInput 无前车时的输入
func FreeInput(speed float64) Input {
	return Input{
		Gap:        math.Inf(1),
		Speed:      speed,
		Alpha:      entity.NoAlpha,
		SpeedLimit: math.Inf(1),
	}
}

// HasLeader 是否存在前车
func (in Input) HasLeader() bool {
	return !math.IsInf(in.Gap, 1)
}

// LeaderSpeed 前车速度
func (in Input) LeaderSpeed() float64 {
	return in.Speed - in.DeltaV
}

// desiredSpeed 考虑瓶颈系数与限速后的期望速度
func (in Input) desiredSpeed(v0 float64) float64 {
	return math.Min(v0*in.Alpha.V0, in.SpeedLimit)
}

// Model 跟车模型接口
// 说明：Acc是纯函数，速度非负约束由积分步骤负责，模型不做截断
type Model interface {
	Name() string          // 模型名称
	Acc(in Input) float64  // 加速度
	DesiredSpeed() float64 // 期望速度
	IsCellular() bool      // 是否为元胞自动机模型（要求dt=1且整数更新）
}

// New 按名称与参数表创建跟车模型
// 功能：统一的模型构造入口，参数缺失、非法或出现未知参数时返回ConfigError
// 参数：name-模型名称（大小写不敏感），params-参数表
// 返回：模型实例
func New(name string, params map[string]float64) (Model, error) {
	name = strings.ToUpper(name)
	r := &paramReader{model: name, params: params, used: map[string]bool{}}
	var m Model
	switch name {
	case IDM:
		m = r.idm()
	case ACC:
		m = &ACCModel{
			IDMModel: *r.idm(),
			Coolness: r.between("coolness", 0, 1, 0.99),
		}
	case GIPPS:
		m = &GippsModel{
			V0: r.positive("v0"),
			A:  r.positive("a"),
			B:  r.positive("b"),
			S0: r.nonNegative("s0", 2),
			T:  r.positive("T"),
		}
	case KRAUSS:
		m = &KraussModel{
			V0:      r.positive("v0"),
			A:       r.positive("a"),
			B:       r.positive("b"),
			S0:      r.nonNegative("s0", 2),
			T:       r.positive("T"),
			Epsilon: r.between("epsilon", 0, 1, 0),
		}
	case OVM_VDIFF:
		m = &OVMModel{
			V0:         r.positive("v0"),
			Tau:        r.positive("tau"),
			S0:         r.nonNegative("s0", 0),
			Width:      r.positive("transition_width"),
			Beta:       r.nonNegative("beta", 1.5),
			Lambda:     r.nonNegative("lambda", 0),
			MaxComfort: r.nonNegative("max_acc", math.Inf(1)),
		}
	case NEWELL:
		m = &NewellModel{
			V0: r.positive("v0"),
			S0: r.nonNegative("s0", 2),
			T:  r.positive("T"),
		}
	case NSM:
		m = &NSMModel{
			CellLength:   r.positive("cell_length"),
			VMax:         r.cells("v0"),
			PSlowdown:    r.between("p_slowdown", 0, 1, 0),
			PSlowToStart: r.between("p_slow_to_start", 0, 1, 0),
		}
	case KKW:
		m = &KKWModel{
			CellLength: r.positive("cell_length"),
			VMax:       r.cells("v0"),
			K:          r.nonNegative("k", 2.55),
			PB0:        r.between("pb0", 0, 1, 0.425),
			PB1:        r.between("pb1", 0, 1, 0.04),
			PA1:        r.between("pa1", 0, 1, 0.2),
			PA2:        r.between("pa2", 0, 1, 0.052),
			VP:         r.nonNegative("vp", 14),
		}
	default:
		return nil, entity.NewConfigError(name, "", "unknown car-following model, must be one of %v", Names)
	}
	if r.err != nil {
		return nil, r.err
	}
	if unknown := r.unknown(); len(unknown) > 0 {
		return nil, entity.NewConfigError(name, unknown[0], "unknown parameter (all unknown: %v)", unknown)
	}
	return m, nil
}

func (r *paramReader) idm() *IDMModel {
	return &IDMModel{
		V0:    r.positive("v0"),
		T:     r.positive("T"),
		S0:    r.nonNegative("s0", math.NaN()),
		S1:    r.nonNegative("s1", 0),
		A:     r.positive("a"),
		B:     r.positive("b"),
		Delta: r.positiveOr("delta", 4),
	}
}

// paramReader 参数表读取器
// 说明：记录第一个错误，之后的读取均返回0，调用方只需在最后检查err
type paramReader struct {
	model  string
	params map[string]float64
	used   map[string]bool
	err    error
}

func (r *paramReader) get(key string, def float64) (float64, bool) {
	r.used[key] = true
	if v, ok := r.params[key]; ok {
		return v, true
	}
	if math.IsNaN(def) {
		return 0, false
	}
	return def, true
}

func (r *paramReader) fail(key, format string, args ...any) float64 {
	if r.err == nil {
		r.err = entity.NewConfigError(r.model, key, format, args...)
	}
	return 0
}

// positive 必需且为正的参数
func (r *paramReader) positive(key string) float64 {
	return r.positiveOr(key, math.NaN())
}

// positiveOr 为正的参数，缺省时取def（def为NaN表示必需）
func (r *paramReader) positiveOr(key string, def float64) float64 {
	v, ok := r.get(key, def)
	if !ok {
		return r.fail(key, "missing required parameter")
	}
	if !(v > 0) {
		return r.fail(key, "must be positive, got %v", v)
	}
	return v
}

// nonNegative 非负参数，缺省时取def（def为NaN表示必需）
func (r *paramReader) nonNegative(key string, def float64) float64 {
	v, ok := r.get(key, def)
	if !ok {
		return r.fail(key, "missing required parameter")
	}
	if v < 0 || math.IsNaN(v) {
		return r.fail(key, "must be non-negative, got %v", v)
	}
	return v
}

// between 取值在[low, high]之间的参数
func (r *paramReader) between(key string, low, high, def float64) float64 {
	v, ok := r.get(key, def)
	if !ok {
		return r.fail(key, "missing required parameter")
	}
	if v < low || v > high || math.IsNaN(v) {
		return r.fail(key, "must be in [%v, %v], got %v", low, high, v)
	}
	return v
}

// cells 以元胞数表示的正整数参数
func (r *paramReader) cells(key string) int {
	v := r.positive(key)
	if v != math.Trunc(v) {
		r.fail(key, "must be an integer number of cells, got %v", v)
		return 0
	}
	return int(v)
}

func (r *paramReader) unknown() []string {
	keys := lo.Filter(lo.Keys(r.params), func(k string, _ int) bool { return !r.used[k] })
	sort.Strings(keys)
	return keys
}
