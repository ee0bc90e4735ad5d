package lanechange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/lanechange"
)

func TestKeepRightBias(t *testing.T) {
	b := lanechange.KeepRightBias{Strength: 0.3}
	assert.Equal(t, 0.3, b.Bias(nil, entity.TO_LEFT))
	assert.Equal(t, -0.3, b.Bias(nil, entity.TO_RIGHT))
	assert.Equal(t, 0.0, b.Bias(nil, entity.NO_CHANGE))
}

func TestPreferredLaneBias(t *testing.T) {
	e := newEnv(t)
	r := e.road(1, 1000, road.TrafficLanes(3))
	bus := e.put(r, 2, e.proto("bus", nil), vehicle.Options{Position: 100, Speed: 10})
	car := e.put(r, 2, e.proto("car", nil), vehicle.Options{Position: 300, Speed: 10})

	b := lanechange.PreferredLaneBias{
		Lanes:    map[string]int32{"bus": 1},
		Strength: 0.5,
		Fallback: lanechange.KeepRightBias{Strength: 0.3},
	}
	// 向偏好车道变道获得奖励，离开则受惩罚
	assert.Equal(t, -0.5, b.Bias(bus, entity.TO_LEFT))
	assert.Equal(t, 0.5, b.Bias(bus, entity.TO_RIGHT))
	// 其他原型使用后备策略
	assert.Equal(t, 0.3, b.Bias(car, entity.TO_LEFT))
}

func TestPreferredLanesSelectStrategy(t *testing.T) {
	e := newEnv(t)
	r := e.road(1, 1000, road.TrafficLanes(3))
	proto := e.proto("bus", func(p *lanechange.Params) { p.PreferredLanes = map[string]int32{"bus": 1} })
	require.IsType(t, lanechange.PreferredLaneBias{}, proto.LaneChange.BiasStrategy())

	// 空路上偏好1号车道的车辆向左变道
	bus := e.put(r, 2, proto, vehicle.Options{Position: 100, Speed: 20})
	res := bus.DecideLaneChange()
	assert.Equal(t, entity.LC_DISCRETIONARY_TO_LEFT, res.Decision)
	assert.InDelta(t, 0.3-0.2, res.Balance, 1e-9)
}
