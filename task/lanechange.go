package task

import (
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
)

// span 已暂存进入某车道的车辆占据的纵向区间
type span struct {
	start, end float64
}

// accepted 本阶段接受的变道
type accepted struct {
	v        *vehicle.Vehicle
	from, to *lane.Lane
}

// changeLanes 变道阶段
// 功能：按路段、车道、位置递减的固定顺序串行决策，暂存后统一应用
// 算法说明：
// 1. 所有决策都基于本阶段开始时的车道快照（暂存不修改车道）
// 2. 与先前已暂存进入同一车道的车辆区间（含MinGap）重叠的变道被取消
// 3. 全部车辆决策完成后才开始变道计时，决策期间任何车辆的变道状态都不改变
func (ctx *Context) changeLanes() {
	staged := make(map[*lane.Lane][]span)
	var changes []accepted
	for _, r := range ctx.network.Segments() {
		for _, l := range r.AllLanes() {
			for _, iv := range l.Vehicles() {
				v := iv.(*vehicle.Vehicle)
				res := v.DecideLaneChange()
				if !res.Decision.IsChange() {
					continue
				}
				to, ok := res.Target.(*lane.Lane)
				if !ok || to == l {
					log.Panicf("vehicle %d: invalid lane change target %v", v.ID(), res.Target)
				}
				gap := v.Prototype().LaneChange.MinGap
				s := span{start: v.Position(), end: v.FrontPosition()}
				if conflicts(staged[to], s, gap) {
					ctx.droppedChanges++
					log.Debugf("vehicle %d: %v into lane %s dropped by an earlier change", v.ID(), res.Decision, to.ID())
					continue
				}
				staged[to] = append(staged[to], s)
				changes = append(changes, accepted{v: v, from: l, to: to})
			}
		}
	}
	if len(changes) == 0 {
		return
	}
	for _, c := range changes {
		c.from.StageRemove(c.v)
		c.to.StageAdd(c.v)
		c.v.StartLaneChange(c.from, c.to)
	}
	ctx.laneChanges += len(changes)
	ctx.network.LaneManager().ApplyStaged()
}

func conflicts(spans []span, s span, gap float64) bool {
	for _, o := range spans {
		if s.start < o.end+gap && o.start < s.end+gap {
			return true
		}
	}
	return false
}
