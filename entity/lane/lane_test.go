package lane_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle/carfollow"
)

type fixture struct {
	network  *road.RoadManager
	vehicles *vehicle.VehicleManager
	car      *vehicle.Prototype
}

func newFixture(t *testing.T) *fixture {
	car, err := vehicle.NewPrototype(vehicle.PrototypeConfig{
		Label:           "car",
		Length:          5,
		MaxDeceleration: 9,
		CarFollow: vehicle.CarFollowConfig{
			Model:  carfollow.IDM,
			Params: map[string]float64{"v0": 33, "T": 1.5, "s0": 2, "a": 1, "b": 1.5},
		},
	}, 0.5)
	require.NoError(t, err)
	return &fixture{network: road.NewManager(), vehicles: vehicle.NewManager(1), car: car}
}

func (f *fixture) road(t *testing.T, id int32, length float64, types ...entity.LaneType) *road.Road {
	defs := make([]road.LaneDef, len(types))
	for i, typ := range types {
		defs[i] = road.LaneDef{Index: int32(i) + 1, Type: typ}
	}
	r, err := road.NewRoad(id, "", length, defs)
	require.NoError(t, err)
	require.NoError(t, f.network.AddSegment(r))
	return r
}

func (f *fixture) add(t *testing.T, l *lane.Lane, pos, speed float64) *vehicle.Vehicle {
	v := f.vehicles.New(f.car, vehicle.Options{Position: pos, Speed: speed})
	l.Insert(v)
	return v
}

func positions(l *lane.Lane) []float64 {
	var res []float64
	for _, v := range l.Vehicles() {
		res = append(res, v.Position())
	}
	return res
}

func TestInsertKeepsOrder(t *testing.T) {
	f := newFixture(t)
	l := f.road(t, 1, 1000, entity.LANE_TYPE_TRAFFIC).LaneSegment(1)
	f.add(t, l, 10, 0)
	front := f.add(t, l, 300, 0)
	mid := f.add(t, l, 150, 0)

	assert.Equal(t, []float64{300, 150, 10}, positions(l))
	assert.Equal(t, entity.IVehicle(front), l.Frontmost())
	assert.Equal(t, 10.0, l.Rearmost().Position())
	assert.Equal(t, entity.ILane(l), mid.Lane())
	assert.Equal(t, "1/1", l.ID())

	// 同一位置重复插入属于程序错误
	assert.Panics(t, func() { f.add(t, l, 150, 0) })

	l.Remove(mid)
	assert.Equal(t, []float64{300, 10}, positions(l))
	assert.Equal(t, entity.IVehicle(front), l.RemoveFrontmost())
	assert.Equal(t, 1, l.Len())
}

func TestNeighborsAcrossSegments(t *testing.T) {
	f := newFixture(t)
	a := f.road(t, 1, 700, entity.LANE_TYPE_TRAFFIC)
	b := f.road(t, 2, 5100, entity.LANE_TYPE_TRAFFIC)
	require.NoError(t, f.network.Link(1, a, 1, b))
	require.NoError(t, f.network.Freeze())
	la, lb := a.LaneSegment(1), b.LaneSegment(1)

	onA := f.add(t, la, 600, 10)
	onB := f.add(t, lb, 3900, 10)

	// 下游车辆换算到上游坐标系：3900 + 700
	front := la.FrontNeighbor(650)
	require.NotNil(t, front)
	assert.Equal(t, entity.IVehicle(onB), front.Vehicle)
	assert.Equal(t, 4600.0, front.Position)
	assert.Equal(t, 4605.0, front.FrontPosition())

	fv := la.FrontVehicleOf(onA)
	require.NotNil(t, fv)
	assert.Equal(t, 4600.0, fv.Position)

	// 上游车辆换算到下游坐标系：600 - 700
	rear := lb.RearNeighbor(100)
	require.NotNil(t, rear)
	assert.Equal(t, entity.IVehicle(onA), rear.Vehicle)
	assert.Equal(t, -100.0, rear.Position)
	rv := lb.RearVehicleOf(onB)
	require.NotNil(t, rv)
	assert.Equal(t, -100.0, rv.Position)

	assert.Nil(t, lb.FrontNeighbor(3900))
	assert.Nil(t, la.RearNeighbor(500))
	assert.Equal(t, 4600.0, la.RearVehicleOnSink().Position)
}

func TestNeighborsOnRing(t *testing.T) {
	f := newFixture(t)
	a := f.road(t, 1, 500, entity.LANE_TYPE_TRAFFIC)
	b := f.road(t, 2, 500, entity.LANE_TYPE_TRAFFIC)
	require.NoError(t, f.network.Link(1, a, 1, b))
	require.NoError(t, f.network.Link(1, b, 1, a))
	require.NoError(t, f.network.Freeze())

	v := f.add(t, a.LaneSegment(1), 100, 10)
	// 环上只有一辆车时查询到的是绕行一周后的自身
	self := a.LaneSegment(1).FrontVehicleOf(v)
	require.NotNil(t, self)
	assert.Equal(t, entity.IVehicle(v), self.Vehicle)
	assert.Equal(t, 1100.0, self.Position)
	self = a.LaneSegment(1).RearVehicleOf(v)
	require.NotNil(t, self)
	assert.Equal(t, -900.0, self.Position)

	w := f.add(t, b.LaneSegment(1), 50, 10)
	front := a.LaneSegment(1).FrontVehicleOf(v)
	require.NotNil(t, front)
	assert.Equal(t, entity.IVehicle(w), front.Vehicle)
	assert.Equal(t, 550.0, front.Position)
	// 绕行：从b看a上的车辆在下游
	front = b.LaneSegment(1).FrontVehicleOf(w)
	require.NotNil(t, front)
	assert.Equal(t, 600.0, front.Position)
}

func TestNextStopLine(t *testing.T) {
	f := newFixture(t)
	ramp := f.road(t, 1, 500, entity.LANE_TYPE_TRAFFIC, entity.LANE_TYPE_ENTRANCE)
	require.NoError(t, f.network.Freeze())
	entrance := ramp.LaneSegment(2)
	require.True(t, entrance.HasClosedEnd())
	require.False(t, entrance.IsAbsorbing())
	require.True(t, ramp.LaneSegment(1).IsAbsorbing())

	sl := entrance.NextStopLine(450, 100)
	require.NotNil(t, sl)
	assert.Equal(t, 500.0, sl.Position)
	assert.Equal(t, entity.LIGHT_STATE_RED, sl.State)
	assert.Nil(t, entrance.NextStopLine(450, 10))
	assert.Nil(t, ramp.LaneSegment(1).NextStopLine(450, 100))
}

func TestNextStopLineLight(t *testing.T) {
	f := newFixture(t)
	a := f.road(t, 1, 300, entity.LANE_TYPE_TRAFFIC)
	b := f.road(t, 2, 300, entity.LANE_TYPE_TRAFFIC)
	require.NoError(t, f.network.Link(1, a, 1, b))
	tl, err := road.NewTrafficLight(100, []road.LightPhase{
		{State: entity.LIGHT_STATE_RED, Duration: 30},
		{State: entity.LIGHT_STATE_GREEN, Duration: 30},
	}, 0)
	require.NoError(t, err)
	require.NoError(t, b.AddLight(tl))
	require.NoError(t, f.network.Freeze())

	// 下游路段的红灯换算到本车道坐标系
	sl := a.LaneSegment(1).NextStopLine(250, 200)
	require.NotNil(t, sl)
	assert.Equal(t, 400.0, sl.Position)
	assert.Equal(t, entity.LIGHT_STATE_RED, sl.State)
	assert.Nil(t, a.LaneSegment(1).NextStopLine(250, 100))

	tl.Update(30)
	assert.Nil(t, a.LaneSegment(1).NextStopLine(250, 200))
}

func TestStagedLaneChange(t *testing.T) {
	f := newFixture(t)
	r := f.road(t, 1, 1000, entity.LANE_TYPE_TRAFFIC, entity.LANE_TYPE_TRAFFIC)
	require.NoError(t, f.network.Freeze())
	l1, l2 := r.LaneSegment(1), r.LaneSegment(2)
	v := f.add(t, l1, 100, 10)
	f.add(t, l2, 200, 10)

	l1.StageRemove(v)
	l2.StageAdd(v)
	// 暂存不影响快照
	assert.Equal(t, 1, l1.Len())
	f.network.LaneManager().ApplyStaged()
	assert.Equal(t, 0, l1.Len())
	assert.Equal(t, []float64{200, 100}, positions(l2))
	assert.Equal(t, entity.ILane(l2), v.Lane())
}

func TestResortAndConsistency(t *testing.T) {
	f := newFixture(t)
	l := f.road(t, 1, 1000, entity.LANE_TYPE_TRAFFIC).LaneSegment(1)
	rear := f.add(t, l, 100, 10)
	front := f.add(t, l, 110, 10)
	require.Empty(t, l.CheckConsistency())

	// 后车越过前车
	rear.SetPosition(112)
	assert.Empty(t, l.Resort())
	assert.Equal(t, []float64{112, 110}, positions(l))

	crashes := l.CheckConsistency()
	require.Len(t, crashes, 1)
	assert.Equal(t, rear.ID(), crashes[0].Front)
	assert.Equal(t, front.ID(), crashes[0].Back)
	assert.Equal(t, -3.0, crashes[0].Gap)

	// 位置完全重合时被微调到前车之后
	front.SetPosition(112)
	rejected := l.Resort()
	require.Len(t, rejected, 1)
	assert.Equal(t, entity.IVehicle(front), rejected[0])
	assert.Less(t, front.Position(), 112.0)
	assert.Equal(t, 2, l.Len())
}

func TestAbsorb(t *testing.T) {
	f := newFixture(t)
	l := f.road(t, 1, 1000, entity.LANE_TYPE_TRAFFIC).LaneSegment(1)
	v := f.add(t, l, 999, 10)
	l.Absorb(v)
	assert.Equal(t, int32(1), l.Outflow())
	assert.Equal(t, int32(1), f.network.LaneManager().Outflow())
	assert.Zero(t, f.network.VehicleCount())
}

func TestOncomingNeighbor(t *testing.T) {
	f := newFixture(t)
	a := f.road(t, 1, 1000, entity.LANE_TYPE_TRAFFIC)
	b := f.road(t, 2, 1000, entity.LANE_TYPE_TRAFFIC)
	require.NoError(t, f.network.SetPeer(a, b))
	require.NoError(t, f.network.Freeze())
	opposite := b.LaneSegment(1)
	far := f.add(t, opposite, 100, 10)
	mid := f.add(t, opposite, 300, 10)
	near := f.add(t, opposite, 600, 10)
	overtaking := a.LaneSegment(entity.OVERTAKING_LANE)

	cases := []struct {
		pos  float64
		want *vehicle.Vehicle
		at   float64
	}{
		{0, near, 395},
		{500, mid, 695},
		{694, mid, 695},
		{695, far, 895},
		{900, nil, 0},
	}
	for _, c := range cases {
		n := overtaking.OncomingNeighbor(c.pos)
		if c.want == nil {
			assert.Nil(t, n, "pos %v", c.pos)
			continue
		}
		require.NotNil(t, n, "pos %v", c.pos)
		assert.Equal(t, entity.IVehicle(c.want), n.Vehicle, "pos %v", c.pos)
		assert.InDelta(t, c.at, n.Position, 1e-9)
	}
}
