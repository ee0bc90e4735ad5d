package input_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
)

const scenario = `
prototypes:
  - label: car
    length: 5
    max_deceleration: 9
    car_follow:
      model: IDM
      params: {v0: 33, T: 1.5, s0: 2, a: 1, b: 1.5}
    lane_change:
      politeness: 0.2
    fraction: 3
  - label: truck
    length: 12
    max_deceleration: 6
    car_follow:
      model: GIPPS
      params: {v0: 25, a: 1, b: 2, T: 1, s0: 3}
    fraction: 1
roads:
  - id: 1
    user_id: main
    length: 1000
    lanes: [TRAFFIC, TRAFFIC, EXIT]
    bottlenecks:
      - {start: 400, end: 600, alpha_v0: 0.8}
    speed_limits:
      - {start: 0, end: 500, limit: 20}
    lights:
      - position: 900
        phases:
          - {state: GREEN, duration: 30}
          - {state: YELLOW, duration: 3}
          - {state: RED, duration: 27}
    restrictions:
      - {lane: 2, labels: [truck]}
    geometry: [[0, 0], [1000, 0]]
  - id: 2
    length: 2000
    lanes: [TRAFFIC, TRAFFIC]
  - id: 3
    user_id: ramp
    length: 300
    lanes: [TRAFFIC]
links:
  - {from: main, from_lane: 1, to: "2", to_lane: 1}
  - {from: main, from_lane: 2, to: "2", to_lane: 2}
  - {from: main, from_lane: 3, to: ramp, to_lane: 1}
vehicles:
  - {road: main, lane: 1, prototype: car, position: 100, speed: 20, exit_road: ramp}
  - {road: "2", lane: 2, prototype: truck, position: 50, speed: 15}
departures:
  - {road: main, lane: 2, prototype: truck, position: 0, time: 10}
sources:
  - {road: main, rate: 1800, speed: 20}
`

func TestParse(t *testing.T) {
	in, err := input.Parse([]byte(scenario), 0.5, 1)
	require.NoError(t, err)

	assert.True(t, in.Network.Frozen())
	assert.Len(t, in.Network.Segments(), 3)
	mainRoad := in.Network.FindByUserID("main")
	require.NotNil(t, mainRoad)
	assert.Equal(t, int32(3), mainRoad.LaneCount())
	assert.Equal(t, entity.LANE_TYPE_EXIT, mainRoad.Lane(3).Type())
	assert.Equal(t, in.Network.FindByID(2).Lane(1), mainRoad.Lane(1).Sink())

	exit, ok := mainRoad.ExitLaneTo(3)
	assert.True(t, ok)
	assert.Equal(t, int32(3), exit)
	assert.InDelta(t, 0.8, mainRoad.AlphaAt(500).V0, 1e-9)
	assert.Equal(t, 20.0, mainRoad.SpeedLimitAt(100))
	assert.Len(t, mainRoad.Lights(), 1)
	assert.True(t, mainRoad.HasLightWithin(800, 1000))
	idx, ok := mainRoad.RestrictedLane("truck")
	assert.True(t, ok)
	assert.Equal(t, int32(2), idx)
	_, ok = mainRoad.PositionAt(500, 1)
	assert.True(t, ok)

	// 未配置的变道参数保留默认值
	car := in.Prototypes["car"]
	assert.Equal(t, 0.2, car.LaneChange.Politeness)
	assert.Equal(t, 0.2, car.LaneChange.Threshold)
	assert.Equal(t, 500.0, in.Prototypes["truck"].LaneChange.ExitConsider)

	assert.Equal(t, 2, in.Vehicles.Count())
	v, err := in.Vehicles.Get(0)
	require.NoError(t, err)
	exitRoad, ok := v.ExitRoadID()
	assert.True(t, ok)
	assert.Equal(t, int32(3), exitRoad)

	assert.Equal(t, 1, in.Sources.Schedule().Len())
	require.Len(t, in.Sources.Inflows(), 1)
	assert.Equal(t, mainRoad, in.Sources.Inflows()[0].Road())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))
	in, err := input.Load(path, 0.5, 1)
	require.NoError(t, err)
	assert.Len(t, in.Prototypes, 2)

	_, err = input.Load(filepath.Join(t.TempDir(), "missing.yaml"), 0.5, 1)
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	proto := `
prototypes:
  - label: car
    length: 5
    max_deceleration: 9
    car_follow: {model: IDM, params: {v0: 33, T: 1.5, s0: 2, a: 1, b: 1.5}}
`
	var topoErr *entity.TopologyError
	var cfgErr *entity.ConfigError

	// 未知路段
	_, err := input.Parse([]byte(proto+`
roads:
  - {id: 1, length: 100, lanes: [TRAFFIC]}
links:
  - {from: "1", from_lane: 1, to: "9", to_lane: 1}
`), 0.5, 1)
	assert.ErrorAs(t, err, &topoErr)

	// 未知车道类型
	_, err = input.Parse([]byte(proto+`
roads:
  - {id: 1, length: 100, lanes: [OVERTAKING]}
`), 0.5, 1)
	assert.ErrorAs(t, err, &cfgErr)

	// 入口车道无法到达终点
	_, err = input.Parse([]byte(proto+`
roads:
  - {id: 1, length: 100, lanes: [ENTRANCE]}
`), 0.5, 1)
	assert.ErrorAs(t, err, &topoErr)

	// 元胞自动机模型要求dt=1
	_, err = input.Parse([]byte(`
prototypes:
  - label: cell
    length: 7.5
    max_deceleration: 9
    car_follow: {model: NSM, params: {v0: 22.5, cell_length: 7.5, p_slowdown: 0.1}}
roads:
  - {id: 1, length: 100, lanes: [TRAFFIC]}
`), 0.5, 1)
	assert.ErrorAs(t, err, &cfgErr)

	// 未知字段
	_, err = input.Parse([]byte(proto+`
roads:
  - {id: 1, length: 100, lanes: [TRAFFIC], speed: 3}
`), 0.5, 1)
	assert.Error(t, err)
}
