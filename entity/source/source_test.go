package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/source"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/carfollow"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

func prototype(t *testing.T, label string) *vehicle.Prototype {
	p, err := vehicle.NewPrototype(vehicle.PrototypeConfig{
		Label:           label,
		Length:          5,
		MaxDeceleration: 9,
		CarFollow: vehicle.CarFollowConfig{
			Model:  carfollow.IDM,
			Params: map[string]float64{"v0": 33, "T": 1.5, "s0": 2, "a": 1, "b": 1.5},
		},
	}, 0.5)
	require.NoError(t, err)
	return p
}

func generator(t *testing.T) *vehicle.Generator {
	g, err := vehicle.NewGenerator([]*vehicle.Prototype{prototype(t, "car")}, []float64{1}, randengine.New(7))
	require.NoError(t, err)
	return g
}

func TestInflowRate(t *testing.T) {
	r, err := road.NewRoad(1, "", 1000, road.TrafficLanes(2))
	require.NoError(t, err)
	s, err := source.NewInflow(r, source.InflowConfig{Rate: 3600, Speed: 20, MinGap: 2}, generator(t))
	require.NoError(t, err)
	vehicles := vehicle.NewManager(1)

	// 1辆/秒，dt=0.5：第二步产生第一辆车
	assert.Empty(t, s.Step(0.5, vehicles))
	added := s.Step(0.5, vehicles)
	require.Len(t, added, 1)
	v := added[0]
	assert.Equal(t, 0.0, v.Position())
	assert.Equal(t, 20.0, v.Speed())
	assert.Equal(t, int32(1), s.Injected())

	// 第二辆车选择空车道
	added = s.Step(1, vehicles)
	require.Len(t, added, 1)
	assert.NotEqual(t, v.Lane().ID(), added[0].Lane().ID())
	vehicles.Prepare()
	assert.Equal(t, 2, vehicles.Count())
}

func TestInflowQueuesWhenBlocked(t *testing.T) {
	r, err := road.NewRoad(1, "", 1000, road.TrafficLanes(1))
	require.NoError(t, err)
	s, err := source.NewInflow(r, source.InflowConfig{Rate: 7200, Speed: 20, MinGap: 2}, generator(t))
	require.NoError(t, err)
	vehicles := vehicle.NewManager(1)

	// 一步内到达2辆，入口只能容纳1辆
	added := s.Step(1, vehicles)
	require.Len(t, added, 1)
	assert.Equal(t, 1, s.Waiting())

	// 车辆驶离入口后排队车辆进入，前车距离不足车头时距时以前车速度进入
	added[0].SetPosition(10)
	r.LaneSegment(1).Resort()
	added = s.Step(0, vehicles)
	require.Len(t, added, 1)
	assert.Equal(t, 0, s.Waiting())
	assert.Equal(t, 20.0, added[0].Speed())
}

func TestInflowConfigErrors(t *testing.T) {
	r, err := road.NewRoad(1, "", 1000, []road.LaneDef{
		{Index: 1, Type: entity.LANE_TYPE_ENTRANCE},
	})
	require.NoError(t, err)
	g := generator(t)

	_, err = source.NewInflow(r, source.InflowConfig{Rate: -1}, g)
	var cfgErr *entity.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	// 没有普通行车道
	_, err = source.NewInflow(r, source.InflowConfig{Rate: 100}, g)
	assert.ErrorAs(t, err, &cfgErr)

	_, err = source.NewInflow(r, source.InflowConfig{Rate: 100, Lanes: []int32{3}}, g)
	assert.ErrorAs(t, err, &cfgErr)

	s, err := source.NewInflow(r, source.InflowConfig{Rate: 100, Lanes: []int32{1}}, g)
	require.NoError(t, err)
	assert.Equal(t, r, s.Road())
}

func TestScheduleDepartures(t *testing.T) {
	r, err := road.NewRoad(1, "", 1000, road.TrafficLanes(1))
	require.NoError(t, err)
	car := prototype(t, "car")
	vehicles := vehicle.NewManager(1)
	schedule := source.NewSchedule()

	require.NoError(t, schedule.Add(&source.Departure{Time: 5, Road: r, Lane: 1, Prototype: car, Options: vehicle.Options{Position: 100}}))
	require.NoError(t, schedule.Add(&source.Departure{Time: 1, Road: r, Lane: 1, Prototype: car, Options: vehicle.Options{Position: 50, Speed: 3}}))
	// 与t=1的车辆重叠，需要推迟
	require.NoError(t, schedule.Add(&source.Departure{Time: 2, Road: r, Lane: 1, Prototype: car, Options: vehicle.Options{Position: 52}, MinGap: 1}))

	assert.Empty(t, schedule.Step(0.5, vehicles))
	added := schedule.Step(1, vehicles)
	require.Len(t, added, 1)
	assert.Equal(t, 50.0, added[0].Position())
	assert.Equal(t, 3.0, added[0].Speed())

	assert.Empty(t, schedule.Step(2, vehicles))
	assert.Equal(t, int32(1), schedule.Delayed())
	assert.Equal(t, 2, schedule.Len())

	added = schedule.Step(5, vehicles)
	require.Len(t, added, 1)
	assert.Equal(t, 100.0, added[0].Position())
	assert.Equal(t, int32(2), schedule.Delayed())

	err = schedule.Add(&source.Departure{Time: 1, Road: r, Lane: 2, Prototype: car})
	var topoErr *entity.TopologyError
	assert.ErrorAs(t, err, &topoErr)
}

func TestManagerStep(t *testing.T) {
	r, err := road.NewRoad(1, "", 1000, road.TrafficLanes(1))
	require.NoError(t, err)
	m := source.NewManager()
	s, err := source.NewInflow(r, source.InflowConfig{Rate: 1800, Speed: 10}, generator(t))
	require.NoError(t, err)
	m.AddInflow(s)
	require.NoError(t, m.Schedule().Add(&source.Departure{Time: 0, Road: r, Lane: 1, Prototype: prototype(t, "bus"), Options: vehicle.Options{Position: 500}}))

	vehicles := vehicle.NewManager(1)
	added := m.Step(0, 2, vehicles)
	require.Len(t, added, 2)
	assert.Equal(t, "bus", added[0].Label())
	assert.Equal(t, "car", added[1].Label())
	assert.Equal(t, 0, m.Waiting())
}
