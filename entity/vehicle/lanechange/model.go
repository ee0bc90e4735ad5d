package lanechange

import (
	"math"

	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// maxChainHops 沿车道链查找时最多经过的车道数，防止环形路网中无限循环
const maxChainHops = 64

// Model 变道决策模型
// 功能：对每辆车按固定优先级依次检查各条规则，第一条给出结果的规则生效
// 说明：模型本身无状态，同一原型的所有车辆共享一个实例；所有加速度均基于当前快照计算，不修改任何车道
type Model struct {
	Params
	bias BiasStrategy
}

// New 创建变道决策模型
// 参数：p-模型参数，maxDecel-车辆物理最大减速度
// 返回：模型，参数非法时返回ConfigError
func New(p Params, maxDecel float64) (*Model, error) {
	if err := p.Validate(maxDecel); err != nil {
		return nil, err
	}
	var bias BiasStrategy = KeepRightBias{Strength: p.Bias}
	if len(p.PreferredLanes) > 0 {
		bias = PreferredLaneBias{Lanes: p.PreferredLanes, Strength: p.Bias, Fallback: bias}
	}
	return &Model{Params: p, bias: bias}, nil
}

// SetBiasStrategy 替换MOBIL的方向偏置策略
func (m *Model) SetBiasStrategy(b BiasStrategy) {
	m.bias = b
}

// BiasStrategy 当前使用的方向偏置策略
func (m *Model) BiasStrategy() BiasStrategy {
	return m.bias
}

// Decide 变道决策
// 功能：对车辆v做出本步的变道决策
// 参数：v-决策车辆（必须位于某条车道中）
// 返回：决策结果，Decision.IsChange()时Target为目标车道
// 算法说明（按优先级，先匹配者生效）：
// 1. 限定车道：已在限定车道时保持，否则向限定车道强制变道
// 2. 固定目标车道
// 3. 出口：距出口500米内开始向出口车道靠拢，300米内必须进入
// 4. 入口加速车道：偏置随剩余距离减小而增大，accNew + bias > accOld时汇入
// 5. 礼让：右侧入口车道有待汇入车辆时附加让行激励向左变道
// 6. MOBIL自由变道：左右两侧取较大的正激励
// 7. 借对向车道超车
// 变道过程中的车辆（除限定车道规则外）一律保持当前车道；0号超车车道上的车辆优先考虑返回1号车道
func (m *Model) Decide(v entity.IVehicle) entity.LaneChangeResult {
	cur := v.Lane()
	if cur == nil || v.IsObstacle() {
		return result(entity.LC_NONE)
	}
	road := cur.Road()
	if idx, ok := road.RestrictedLane(v.Label()); ok {
		return m.mandatoryTowards(v, idx)
	}
	if v.InLaneChange() {
		return result(entity.LC_STAY_IN_LANE)
	}
	if cur.Index() == entity.OVERTAKING_LANE {
		return m.returnFromOvertaking(v)
	}
	if idx, ok := v.FixedTargetLane(); ok {
		return m.mandatoryTowards(v, idx)
	}
	if res, ok := m.exit(v); ok {
		return res
	}
	if cur.Type() == entity.LANE_TYPE_ENTRANCE {
		return m.entrance(v)
	}
	if res, ok := m.courtesy(v); ok {
		return res
	}
	res := m.mobil(v)
	if res.Decision.IsChange() || !m.Overtaking {
		return res
	}
	if ot, ok := m.overtake(v); ok {
		return ot
	}
	return res
}

func result(d entity.LaneChangeDecision) entity.LaneChangeResult {
	return entity.LaneChangeResult{Decision: d}
}

func mandatory(direction int32) entity.LaneChangeDecision {
	if direction == entity.TO_LEFT {
		return entity.LC_MANDATORY_TO_LEFT
	}
	return entity.LC_MANDATORY_TO_RIGHT
}

func discretionary(direction int32) entity.LaneChangeDecision {
	if direction == entity.TO_LEFT {
		return entity.LC_DISCRETIONARY_TO_LEFT
	}
	return entity.LC_DISCRETIONARY_TO_RIGHT
}

// discretionaryTarget 自由变道允许进入的车道
func discretionaryTarget(l entity.ILane) bool {
	return l != nil && l.Index() != entity.OVERTAKING_LANE && l.Type() == entity.LANE_TYPE_TRAFFIC
}

// other 排除查询结果中的车辆自身（环形路网中只有一辆车时会查到自己）
func other(v entity.IVehicle, n *entity.Neighbor) *entity.Neighbor {
	if n == nil || n.Vehicle == v {
		return nil
	}
	return n
}

// change 一次候选变道的评估结果
type change struct {
	target        entity.ILane
	front, back   *entity.Neighbor // 目标车道中的新前车与新后车
	accSelf       float64          // 本车在目标车道中的加速度
	accBackBefore float64          // 新后车变道前的加速度
	accBackAfter  float64          // 新后车变道后的加速度
}

// evaluate 安全性检查与假想插入
// 功能：假设本车以当前位置出现在target中，计算前后净间距与相关车辆的加速度
// 返回：评估结果，是否安全
// 算法说明：
// 1. 新前车或新后车正在变道时不安全
// 2. 前后净间距任一小于MinGap时不安全
// 3. 新后车变道后的加速度<=-bSafe时不安全
func (m *Model) evaluate(v entity.IVehicle, target entity.ILane) (change, bool) {
	pos := v.Position()
	c := change{
		target: target,
		front:  other(v, target.FrontNeighbor(pos)),
		back:   other(v, target.RearNeighbor(pos)),
	}
	if f := c.front; f != nil {
		if f.Vehicle.InLaneChange() || f.Position-v.FrontPosition() < m.MinGap {
			return c, false
		}
	}
	if b := c.back; b != nil {
		if b.Vehicle.InLaneChange() || pos-b.FrontPosition() < m.MinGap {
			return c, false
		}
		c.accBackAfter = b.Vehicle.AccIn(target, b.Position, &entity.Neighbor{Vehicle: v, Position: pos})
		if c.accBackAfter <= -m.SafeDeceleration {
			return c, false
		}
		c.accBackBefore = b.Vehicle.AccIn(target, b.Position, c.front)
	}
	c.accSelf = v.AccIn(target, pos, c.front)
	return c, true
}

// accInCurrentLane 本车在当前车道的加速度
func accInCurrentLane(v entity.IVehicle) float64 {
	cur := v.Lane()
	return v.AccIn(cur, v.Position(), other(v, cur.FrontVehicleOf(v)))
}

// oldFollowerDelta 本车离开后原后车的加速度变化
func oldFollowerDelta(v entity.IVehicle) float64 {
	cur := v.Lane()
	back := other(v, cur.RearVehicleOf(v))
	if back == nil || back.Vehicle.IsObstacle() {
		return 0
	}
	before := back.Vehicle.AccIn(cur, back.Position, &entity.Neighbor{Vehicle: v, Position: v.Position()})
	after := back.Vehicle.AccIn(cur, back.Position, other(v, cur.FrontVehicleOf(v)))
	return after - before
}

// balance MOBIL激励值
// 算法说明：Δa_self + p(Δa_oldBack + Δa_newBack) - threshold - bias(direction)
func (m *Model) balance(v entity.IVehicle, c change, accOld, oldDelta float64, direction int32) float64 {
	self := c.accSelf - accOld
	newDelta := c.accBackAfter - c.accBackBefore
	return self + m.Politeness*(oldDelta+newDelta) - m.Threshold - m.bias.Bias(v, direction)
}

// mandatoryTowards 向目标车道强制变道
// 返回：已在目标车道时为MANDATORY_STAY_IN_LANE；变道中或不安全时为STAY_IN_LANE
func (m *Model) mandatoryTowards(v entity.IVehicle, index int32) entity.LaneChangeResult {
	cur := v.Lane()
	if cur.Index() == index {
		return result(entity.LC_MANDATORY_STAY_IN_LANE)
	}
	if v.InLaneChange() {
		return result(entity.LC_STAY_IN_LANE)
	}
	direction := int32(entity.TO_RIGHT)
	if index < cur.Index() {
		direction = entity.TO_LEFT
	}
	return m.mandatoryStep(v, direction)
}

// mandatoryStep 向指定方向强制变道一个车道
func (m *Model) mandatoryStep(v entity.IVehicle, direction int32) entity.LaneChangeResult {
	cur := v.Lane()
	target := cur.Road().Lane(cur.Index() + direction)
	if target == nil || target.Index() == entity.OVERTAKING_LANE {
		return result(entity.LC_STAY_IN_LANE)
	}
	if _, safe := m.evaluate(v, target); !safe {
		return result(entity.LC_STAY_IN_LANE)
	}
	return entity.LaneChangeResult{Decision: mandatory(direction), Target: target}
}

// exit 出口规则
// 返回：决策结果，规则是否适用
// 算法说明：
// 1. 位于出口车道的车辆：从该出口驶出时保持，否则强制向左离开
// 2. 沿下游链查找通往目标路段的出口车道，出口（出口车道所在路段末端）距离超过ExitConsider时不适用
// 3. 将出口车道沿上游链换算到当前路段的车道编号，无法换算时取当前路段最右侧的普通车道
// 4. 距离<=ExitMandatory时强制变道，否则仅在不显著降低自身加速度时变道
func (m *Model) exit(v entity.IVehicle) (entity.LaneChangeResult, bool) {
	cur := v.Lane()
	exitRoad, wants := v.ExitRoadID()
	if cur.Type() == entity.LANE_TYPE_EXIT {
		sink := cur.Sink()
		if !wants || sink == nil || sink.Road().ID() != exitRoad {
			return m.mandatoryStep(v, entity.TO_LEFT), true
		}
		return result(entity.LC_MANDATORY_STAY_IN_LANE), true
	}
	if !wants {
		return entity.LaneChangeResult{}, false
	}
	dist := -v.FrontPosition()
	hops := 0
	for l := cur; l != nil && hops < maxChainHops; l, hops = l.Sink(), hops+1 {
		dist += l.Length()
		if dist > m.ExitConsider {
			return entity.LaneChangeResult{}, false
		}
		idx, ok := l.Road().ExitLaneTo(exitRoad)
		if !ok {
			continue
		}
		index := exitLaneOnRoad(l.Road().Lane(idx), cur.Road(), hops)
		if cur.Index() == index {
			return result(entity.LC_MANDATORY_STAY_IN_LANE), true
		}
		if dist <= m.ExitMandatory {
			return m.mandatoryTowards(v, index), true
		}
		direction := int32(entity.TO_RIGHT)
		if index < cur.Index() {
			direction = entity.TO_LEFT
		}
		target := cur.Road().Lane(cur.Index() + direction)
		if target == nil || target.Index() == entity.OVERTAKING_LANE {
			return result(entity.LC_STAY_IN_LANE), true
		}
		c, safe := m.evaluate(v, target)
		if !safe || c.accSelf < accInCurrentLane(v)-m.Threshold {
			return result(entity.LC_STAY_IN_LANE), true
		}
		return entity.LaneChangeResult{Decision: discretionary(direction), Target: target}, true
	}
	return entity.LaneChangeResult{}, false
}

// exitLaneOnRoad 出口车道换算到road上的车道编号
func exitLaneOnRoad(exitLane entity.ILane, road entity.IRoad, hops int) int32 {
	l := exitLane
	for i := 0; i < hops && l != nil; i++ {
		l = l.Source()
	}
	if l != nil && l.Road() == road {
		return l.Index()
	}
	for i := road.LaneCount(); i >= entity.MOST_INNER_LANE; i-- {
		if road.Lane(i).Type() == entity.LANE_TYPE_TRAFFIC {
			return i
		}
	}
	return road.LaneCount()
}

// entrance 入口加速车道规则
// 算法说明：
// 1. 剩余距离rem为车头到入口车道链封闭末端的距离，末端接入普通车道时为+Inf
// 2. bias = maxDecel * EntranceFactor / max(rem, EntranceFactor)
// 3. 左侧车道安全且accNew + bias > accOld时强制向左汇入
func (m *Model) entrance(v entity.IVehicle) entity.LaneChangeResult {
	cur := v.Lane()
	target := cur.Road().Lane(cur.Index() + entity.TO_LEFT)
	if target == nil || target.Index() == entity.OVERTAKING_LANE {
		return result(entity.LC_STAY_IN_LANE)
	}
	rem := cur.Length() - v.FrontPosition()
	l := cur
	for hops := 0; l.Sink() != nil && l.Sink().Type() == entity.LANE_TYPE_ENTRANCE && hops < maxChainHops; hops++ {
		l = l.Sink()
		rem += l.Length()
	}
	if l.Sink() != nil {
		rem = math.Inf(1)
	}
	bias := v.MaxDeceleration() * m.EntranceFactor / math.Max(rem, m.EntranceFactor)
	c, safe := m.evaluate(v, target)
	if !safe || !(c.accSelf+bias > accInCurrentLane(v)) {
		return result(entity.LC_STAY_IN_LANE)
	}
	return entity.LaneChangeResult{Decision: entity.LC_MANDATORY_TO_LEFT, Target: target, Balance: bias}
}

// courtesy 礼让规则
// 功能：右侧为入口车道且CourtesyRange内有待汇入车辆时，以附加激励CourtesyBias计算向左变道的MOBIL激励
// 返回：决策结果，是否产生变道（不产生时继续后续规则）
func (m *Model) courtesy(v entity.IVehicle) (entity.LaneChangeResult, bool) {
	cur := v.Lane()
	road := cur.Road()
	right := road.Lane(cur.Index() + entity.TO_RIGHT)
	if right == nil || right.Type() != entity.LANE_TYPE_ENTRANCE {
		return entity.LaneChangeResult{}, false
	}
	left := road.Lane(cur.Index() + entity.TO_LEFT)
	if !discretionaryTarget(left) {
		return entity.LaneChangeResult{}, false
	}
	pos := v.Position()
	merging := right.FrontNeighbor(pos - m.CourtesyRange)
	if merging == nil || merging.Position > pos+m.CourtesyRange {
		return entity.LaneChangeResult{}, false
	}
	c, safe := m.evaluate(v, left)
	if !safe {
		return entity.LaneChangeResult{}, false
	}
	b := m.balance(v, c, accInCurrentLane(v), oldFollowerDelta(v), entity.TO_LEFT) + m.CourtesyBias
	if b <= 0 {
		return entity.LaneChangeResult{}, false
	}
	return entity.LaneChangeResult{Decision: entity.LC_DISCRETIONARY_TO_LEFT, Target: left, Balance: b}, true
}

// mobil MOBIL自由变道
// 返回：没有可选车道时为NONE，两侧激励均非正时为STAY_IN_LANE
func (m *Model) mobil(v entity.IVehicle) entity.LaneChangeResult {
	cur := v.Lane()
	road := cur.Road()
	best := result(entity.LC_NONE)
	var accOld, oldDelta float64
	evaluated := false
	for _, direction := range []int32{entity.TO_LEFT, entity.TO_RIGHT} {
		target := road.Lane(cur.Index() + direction)
		if !discretionaryTarget(target) {
			continue
		}
		if best.Decision == entity.LC_NONE {
			best.Decision = entity.LC_STAY_IN_LANE
		}
		c, safe := m.evaluate(v, target)
		if !safe {
			continue
		}
		if !evaluated {
			accOld, oldDelta = accInCurrentLane(v), oldFollowerDelta(v)
			evaluated = true
		}
		if b := m.balance(v, c, accOld, oldDelta, direction); b > 0 && b > best.Balance {
			best = entity.LaneChangeResult{Decision: discretionary(direction), Target: target, Balance: b}
		}
	}
	return best
}

// overtake 借对向车道超车
// 返回：决策结果，是否超车
// 算法说明：
// 1. 仅单车道且对向同为单车道的路段、位于1号车道、前方OvertakeDistance内有前车
// 2. 前方OvertakeDistance均在本路段内且无信号灯
// 3. 对向0号车道上没有与超车区间（前后各扩展OvertakeMinSeparation）重叠的反向超车车辆
// 4. 迎面来车距离 >= OvertakeDistance + v对向 * OvertakeDistance / v本车
// 5. 0号车道安全且自身加速度增益超过阈值与偏置
func (m *Model) overtake(v entity.IVehicle) (entity.LaneChangeResult, bool) {
	cur := v.Lane()
	road := cur.Road()
	peer := road.Peer()
	if peer == nil || cur.Index() != entity.MOST_INNER_LANE || road.LaneCount() != 1 || peer.LaneCount() != road.LaneCount() {
		return entity.LaneChangeResult{}, false
	}
	lane0 := road.Lane(entity.OVERTAKING_LANE)
	if lane0 == nil {
		return entity.LaneChangeResult{}, false
	}
	pos, front := v.Position(), v.FrontPosition()
	leader := other(v, cur.FrontVehicleOf(v))
	if leader == nil || leader.Position-front > m.OvertakeDistance {
		return entity.LaneChangeResult{}, false
	}
	end := front + m.OvertakeDistance
	if end > road.Length() || road.HasLightWithin(pos, end) {
		return entity.LaneChangeResult{}, false
	}
	if peer0 := peer.Lane(entity.OVERTAKING_LANE); peer0 != nil {
		for _, o := range peer0.Vehicles() {
			x := road.Length() - o.FrontPosition()
			if x+o.Length() >= pos-m.OvertakeMinSeparation && x <= end+m.OvertakeMinSeparation {
				return entity.LaneChangeResult{}, false
			}
		}
	}
	if on := lane0.OncomingNeighbor(front); on != nil {
		need := m.OvertakeDistance + on.Speed()*m.OvertakeDistance/math.Max(v.Speed(), 1)
		if on.Position-front < need {
			return entity.LaneChangeResult{}, false
		}
	}
	c, safe := m.evaluate(v, lane0)
	if !safe {
		return entity.LaneChangeResult{}, false
	}
	b := c.accSelf - accInCurrentLane(v) - m.Threshold - m.bias.Bias(v, entity.TO_LEFT)
	if b <= 0 {
		return entity.LaneChangeResult{}, false
	}
	return entity.LaneChangeResult{Decision: entity.LC_OVERTAKE_VIA_PEER, Target: lane0, Balance: b}, true
}

// returnFromOvertaking 超车车道上的车辆返回1号车道
// 说明：1号车道安全且返回后加速度不低于当前加速度减阈值时返回（迎面来车与车道封闭端会降低当前加速度）
func (m *Model) returnFromOvertaking(v entity.IVehicle) entity.LaneChangeResult {
	cur := v.Lane()
	lane1 := cur.Road().Lane(entity.MOST_INNER_LANE)
	if lane1 == nil {
		return result(entity.LC_STAY_IN_LANE)
	}
	c, safe := m.evaluate(v, lane1)
	if !safe || c.accSelf+m.Threshold < accInCurrentLane(v) {
		return result(entity.LC_STAY_IN_LANE)
	}
	return entity.LaneChangeResult{Decision: entity.LC_MANDATORY_TO_RIGHT, Target: lane1}
}
