package carfollow_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/carfollow"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

var idmParams = map[string]float64{"v0": 30, "T": 1.5, "s0": 2, "a": 1, "b": 1.5}

func mustNew(t *testing.T, name string, params map[string]float64) carfollow.Model {
	m, err := carfollow.New(name, params)
	require.NoError(t, err)
	return m
}

func TestFreeFlowContinuousModels(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]float64
		free   func(v float64) float64
	}{
		{carfollow.IDM, idmParams, func(v float64) float64 { return 1 * (1 - math.Pow(v/30, 4)) }},
		{carfollow.ACC, idmParams, func(v float64) float64 { return 1 * (1 - math.Pow(v/30, 4)) }},
		{
			carfollow.GIPPS, map[string]float64{"v0": 30, "a": 1.5, "b": 1, "T": 1},
			func(v float64) float64 { return math.Min(v+1.5, 30) - v },
		},
		{
			carfollow.KRAUSS, map[string]float64{"v0": 30, "a": 1.5, "b": 1, "T": 1},
			func(v float64) float64 { return math.Min(v+1.5, 30) - v },
		},
		{
			carfollow.NEWELL, map[string]float64{"v0": 30, "T": 0.5},
			func(v float64) float64 { return (30 - v) / 0.5 },
		},
		{
			carfollow.OVM_VDIFF, map[string]float64{"v0": 30, "tau": 0.65, "transition_width": 15},
			func(v float64) float64 { return (30 - v) / 0.65 },
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := mustNew(t, c.name, c.params)
			assert.False(t, m.IsCellular())
			for _, v := range []float64{0, 5, 20, 29.5, 35} {
				assert.InDelta(t, c.free(v), m.Acc(carfollow.FreeInput(v)), 1e-9, "v=%v", v)
			}
		})
	}
}

func TestIDMWithLeader(t *testing.T) {
	m := mustNew(t, carfollow.IDM, idmParams)
	in := carfollow.FreeInput(20)
	in.Gap = 10
	in.DeltaV = 5
	acc := m.Acc(in)
	assert.Less(t, acc, 0.0)

	// 间距越大加速度越大
	in.Gap = 100
	assert.Greater(t, m.Acc(in), acc)

	// 重叠时紧急制动
	in.Gap = 0
	assert.True(t, math.IsInf(m.Acc(in), -1))
}

func TestIDMBottleneckAndSpeedLimit(t *testing.T) {
	m := mustNew(t, carfollow.IDM, idmParams)
	in := carfollow.FreeInput(25)
	base := m.Acc(in)
	in.Alpha = entity.Alpha{T: 1, V0: 0.8, A: 1}
	// 期望速度降为24，25m/s时应减速
	assert.Less(t, m.Acc(in), 0.0)
	assert.Less(t, m.Acc(in), base)

	in = carfollow.FreeInput(25)
	in.SpeedLimit = 20
	assert.InDelta(t, 1-math.Pow(25.0/20, 4), m.Acc(in), 1e-9)
}

func TestACCIsCoolerThanIDMOnCutIn(t *testing.T) {
	idm := mustNew(t, carfollow.IDM, idmParams)
	acc := mustNew(t, carfollow.ACC, idmParams)
	// 前车以相同速度切入，间距很小
	in := carfollow.FreeInput(25)
	in.Gap = 8
	in.DeltaV = 0
	assert.Greater(t, acc.Acc(in), idm.Acc(in))
}

func TestGippsSafeSpeed(t *testing.T) {
	m := mustNew(t, carfollow.GIPPS, map[string]float64{"v0": 30, "a": 1.5, "b": 3, "T": 1, "s0": 2})
	in := carfollow.FreeInput(10)
	in.Gap = 2
	in.DeltaV = 10 // 前车静止
	// vSafe = -3 + sqrt(9 + 0 + 0) = 0
	assert.InDelta(t, -10, m.Acc(in), 1e-9)
}

func TestKraussNoiseOnlyDecelerates(t *testing.T) {
	m := mustNew(t, carfollow.KRAUSS, map[string]float64{"v0": 30, "a": 1.5, "b": 1, "T": 1, "epsilon": 0.5})
	in := carfollow.FreeInput(10)
	det := m.Acc(in)
	in.Rng = randengine.New(42)
	for i := 0; i < 100; i++ {
		acc := m.Acc(in)
		assert.LessOrEqual(t, acc, det)
		assert.GreaterOrEqual(t, acc, det-0.5*1.5)
	}
}

func TestOVMOptimalSpeed(t *testing.T) {
	m := mustNew(t, carfollow.OVM_VDIFF, map[string]float64{"v0": 30, "tau": 0.65, "transition_width": 15, "s0": 2}).(*carfollow.OVMModel)
	assert.Equal(t, 0.0, m.OptimalSpeed(1, 30))
	assert.Equal(t, 30.0, m.OptimalSpeed(math.Inf(1), 30))
	assert.Less(t, m.OptimalSpeed(20, 30), m.OptimalSpeed(60, 30))
}

func TestNSMDeterministic(t *testing.T) {
	m := mustNew(t, carfollow.NSM, map[string]float64{"cell_length": 7.5, "v0": 5})
	assert.True(t, m.IsCellular())
	// 静止加速到1元胞/步
	assert.InDelta(t, 7.5, m.Acc(carfollow.FreeInput(0)), 1e-9)
	// 最大速度时保持
	assert.InDelta(t, 0, m.Acc(carfollow.FreeInput(37.5)), 1e-9)
	// 前方只有2个空元胞
	in := carfollow.FreeInput(30)
	in.Gap = 15
	in.DeltaV = 30
	assert.InDelta(t, -15, m.Acc(in), 1e-9)
}

func TestSnapSpeedOffGrid(t *testing.T) {
	m := mustNew(t, carfollow.NSM, map[string]float64{"cell_length": 7.5, "v0": 6})
	assert.InDelta(t, 37.5, carfollow.SnapSpeed(m, 40), 1e-9)
	assert.InDelta(t, 45, carfollow.SnapSpeed(m, 45), 1e-9)
	assert.Equal(t, 0.0, carfollow.SnapSpeed(m, -1))
	assert.Equal(t, 40.0, carfollow.SnapSpeed(mustNew(t, carfollow.IDM, idmParams), 40))

	// 38米只容纳5个元胞，对齐后的速度加上变化量不超过37.5米
	in := carfollow.FreeInput(40)
	in.Gap = 38
	in.DeltaV = 40
	assert.InDelta(t, 37.5, carfollow.SnapSpeed(m, 40)+m.Acc(in), 1e-9)

	// 间距恰好差一点到6个元胞时不向上取整
	in.Gap = 45 - 1e-7
	assert.InDelta(t, 37.5, carfollow.SnapSpeed(m, 40)+m.Acc(in), 1e-9)
}

func TestKKWStaysWithinGap(t *testing.T) {
	m := mustNew(t, carfollow.KKW, map[string]float64{"cell_length": 0.5, "v0": 60})
	in := carfollow.FreeInput(10)
	in.Gap = 3
	in.DeltaV = 10
	in.Rng = randengine.New(7)
	for i := 0; i < 50; i++ {
		vNew := in.Speed + m.Acc(in)
		assert.LessOrEqual(t, vNew, 3.0+1e-9)
		assert.GreaterOrEqual(t, vNew, 0.0)
	}
}

func TestNewConfigErrors(t *testing.T) {
	var cerr *entity.ConfigError

	_, err := carfollow.New("FOO", nil)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "FOO", cerr.Model)

	_, err = carfollow.New("idm", map[string]float64{"v0": 30, "T": 1.5, "a": 1, "b": 1.5})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "s0", cerr.Param)

	_, err = carfollow.New("IDM", map[string]float64{"v0": -1, "T": 1.5, "s0": 2, "a": 1, "b": 1.5})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "v0", cerr.Param)

	_, err = carfollow.New("IDM", map[string]float64{"v0": 30, "T": 1.5, "s0": 2, "a": 1, "b": 1.5, "typo": 1})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "typo", cerr.Param)

	_, err = carfollow.New("NSM", map[string]float64{"cell_length": 7.5, "v0": 4.5})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "v0", cerr.Param)

	_, err = carfollow.New("KRAUSS", map[string]float64{"v0": 30, "a": 1.5, "b": 1, "T": 1, "epsilon": 2})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "epsilon", cerr.Param)
}
