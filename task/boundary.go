package task

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
)

// boundary 边界处理
// 功能：车尾越过车道末端的车辆移交到下游车道或驶出路网
// 算法说明：
// 1. 有下游车道：pos -= 车道长度，速度不变，插入下游车道；若仍越过下游车道末端则继续处理下游车道
// 2. 吸收型终点：从车道与车辆登记表中移除，累计流出量
// 3. 末端封闭的车道（车辆未能在末端前停下）：记录警告后同样移除
func (ctx *Context) boundary() {
	pending := ctx.network.LaneManager().Lanes()
	for len(pending) > 0 {
		var next []*lane.Lane
		for _, l := range pending {
			next = append(next, ctx.drain(l)...)
		}
		pending = lo.Uniq(next)
	}
}

// drain 处理一条车道上全部越过末端的车辆
// 返回：接收了仍越过末端的车辆的下游车道
func (ctx *Context) drain(l *lane.Lane) (overflow []*lane.Lane) {
	for {
		front := l.Frontmost()
		if front == nil || front.Position() < l.Length() {
			return
		}
		v := front.(*vehicle.Vehicle)
		sink := l.SinkLane()
		switch {
		case sink != nil:
			l.RemoveFrontmost()
			v.SetPosition(v.Position() - l.Length())
			sink.Insert(v)
			if v.Position() >= sink.Length() {
				overflow = append(overflow, sink)
			}
		case l.IsAbsorbing():
			l.Absorb(v)
			ctx.vehicles.Remove(v)
		default:
			log.Warnf("step %d: vehicle %d overran the closed end of lane %s and is removed", ctx.clock.InternalStep, v.ID(), l.ID())
			l.Absorb(v)
			ctx.vehicles.Remove(v)
		}
	}
}
