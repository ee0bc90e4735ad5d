package output_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/output"
	"github.com/tsinghua-fib-lab/lanesim/task"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
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
    fraction: 1
  - label: cone
    length: 1
    obstacle: true
roads:
  - {id: 1, user_id: main, length: 700, lanes: [TRAFFIC, TRAFFIC], geometry: [[0, 0], [700, 0]]}
  - {id: 2, length: 5100, lanes: [TRAFFIC]}
links:
  - {from: main, from_lane: 1, to: "2", to_lane: 1}
vehicles:
  - {road: main, lane: 1, prototype: car, position: 680, speed: 20, fixed_lane: 1}
  - {road: main, lane: 2, prototype: car, position: 80, speed: 20}
  - {road: main, lane: 2, prototype: cone, position: 600}
`

func newContext(t *testing.T, total int32) *task.Context {
	c := config.Config{Control: config.Control{
		Step: config.ControlStep{Total: total, Interval: 0.5},
		Seed: 7,
	}}
	in, err := input.Parse([]byte(scenario), c.Control.Step.Interval, c.Control.Seed)
	require.NoError(t, err)
	ctx, err := task.NewContext(c, in)
	require.NoError(t, err)
	return ctx
}

func TestDetectorRecorder(t *testing.T) {
	ctx := newContext(t, 4)
	var buf bytes.Buffer
	d, err := output.NewDetectorRecorder(&buf, ctx.Network(), []config.DetectorOutput{
		{Road: "main", Position: 100},
		{Road: "2", Position: 10},
	})
	require.NoError(t, err)
	ctx.AddRecorder(d)
	require.NoError(t, ctx.Run())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, output.DetectorHeader, rows[0])

	byRoad := map[string][]string{rows[1][1]: rows[1], rows[2][1]: rows[2]}
	// 车道2上的车辆在一步内越过100米断面
	main := byRoad["1"]
	require.NotNil(t, main)
	assert.Equal(t, []string{"100", "2", "1", "7200.00"}, main[2:6])
	speed, err := strconv.ParseFloat(main[6], 64)
	require.NoError(t, err)
	assert.InDelta(t, 20.5, speed, 0.5)

	// 移交到下游路段后越过10米断面
	down := byRoad["2"]
	require.NotNil(t, down)
	assert.Equal(t, []string{"10", "1", "1"}, down[2:5])
}

func TestDetectorRecorderErrors(t *testing.T) {
	ctx := newContext(t, 1)
	var ce *entity.ConfigError
	_, err := output.NewDetectorRecorder(&bytes.Buffer{}, ctx.Network(), []config.DetectorOutput{{Road: "missing"}})
	assert.ErrorAs(t, err, &ce)
	_, err = output.NewDetectorRecorder(&bytes.Buffer{}, ctx.Network(), []config.DetectorOutput{{Road: "main", Position: 701}})
	assert.ErrorAs(t, err, &ce)
}

func TestVehicleFeatures(t *testing.T) {
	ctx := newContext(t, 1)
	fc := output.VehicleFeatures(0, ctx.Network())
	require.Len(t, fc.Features, 3)
	for _, f := range fc.Features {
		assert.True(t, f.Geometry.IsPoint())
	}
	car := fc.Features[2]
	assert.Equal(t, int32(2), car.Properties["lane"])
	assert.InDelta(t, 85, car.Geometry.Point[0], 1e-9)
	// 2号车道中心位于中心线右侧1.5个车道宽度
	assert.InDelta(t, -1.5*3.5, car.Geometry.Point[1], 1e-9)

	network := output.NetworkFeatures(ctx.Network())
	require.Len(t, network.Features, 1)
	assert.True(t, network.Features[0].Geometry.IsLineString())
	assert.Equal(t, "main", network.Features[0].Properties["user_id"])
}

func TestGeoJSONRecorder(t *testing.T) {
	ctx := newContext(t, 2)
	dir := t.TempDir()
	g, err := output.NewGeoJSONRecorder(dir, ctx.Network())
	require.NoError(t, err)
	ctx.AddRecorder(g)
	require.NoError(t, ctx.Run())

	for _, name := range []string{"network.geojson", "snapshot_0.geojson", "snapshot_1.geojson", "snapshot_2.geojson"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		fc, err := geojson.UnmarshalFeatureCollection(data)
		require.NoError(t, err, name)
		assert.NotEmpty(t, fc.Features, name)
	}
}

func TestTrajectory(t *testing.T) {
	ctx := newContext(t, 1)
	points := output.Trajectory("run", 0, 0, ctx.Network())
	// 障碍物不输出
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, "run", p.Run)
		assert.Equal(t, "car", p.Label)
		assert.Equal(t, int32(1), p.Road)
	}
}
