package road

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// peerLengthTolerance 对向路段长度允许的误差（米）
const peerLengthTolerance = 1.0

// RoadManager 路网
// 功能：持有全部路段，提供按ID/用户ID查找、车道连接、对向路段配对与冻结校验
// 说明：路网是所有路段与车道存储的唯一持有者，车道间的sink/source均为非拥有的引用
type RoadManager struct {
	roads   []*Road
	data    map[int32]*Road
	userIDs map[string]*Road

	laneManager *lane.LaneManager

	frozen bool
}

// NewManager 创建空路网
func NewManager() *RoadManager {
	return &RoadManager{
		roads:       make([]*Road, 0),
		data:        make(map[int32]*Road),
		userIDs:     make(map[string]*Road),
		laneManager: lane.NewManager(),
	}
}

// LaneManager 路网中全部车道的登记表
func (m *RoadManager) LaneManager() *lane.LaneManager {
	return m.laneManager
}

// Frozen 路网是否已冻结
func (m *RoadManager) Frozen() bool {
	return m.frozen
}

func (m *RoadManager) checkMutable(segment, laneIndex int32) error {
	if m.frozen {
		return entity.NewTopologyError(segment, laneIndex, "road network is frozen")
	}
	return nil
}

// AddSegment 添加路段
// 返回：ID或用户ID重复、路网已冻结时返回TopologyError
func (m *RoadManager) AddSegment(r *Road) error {
	if err := m.checkMutable(r.id, -1); err != nil {
		return err
	}
	if _, ok := m.data[r.id]; ok {
		return entity.NewTopologyError(r.id, -1, "duplicate segment id")
	}
	if r.userID != "" {
		if other, ok := m.userIDs[r.userID]; ok {
			return entity.NewTopologyError(r.id, -1, "duplicate user id %q (already used by segment %d)", r.userID, other.id)
		}
		m.userIDs[r.userID] = r
	}
	m.data[r.id] = r
	m.roads = append(m.roads, r)
	for _, l := range r.AllLanes() {
		m.laneManager.Add(l)
	}
	return nil
}

// FindByID 按ID查找路段
// 返回：路段，不存在时返回nil
func (m *RoadManager) FindByID(id int32) *Road {
	return m.data[id]
}

// FindByUserID 按用户ID查找路段
// 返回：路段，不存在时返回nil
func (m *RoadManager) FindByUserID(userID string) *Road {
	return m.userIDs[userID]
}

// Segments 全部路段（按添加顺序）
func (m *RoadManager) Segments() []*Road {
	return m.roads
}

// Link 连接两条车道
// 功能：设置上游车道的sink与下游车道的source
// 参数：fromLane-上游车道编号，from-上游路段，toLane-下游车道编号，to-下游路段
// 返回：车道不存在、上游车道已有sink、下游车道已有source或路网已冻结时返回TopologyError
// 说明：多车道路口需要拆分为多次单车道连接，每条车道最多一个上游和一个下游
func (m *RoadManager) Link(fromLane int32, from *Road, toLane int32, to *Road) error {
	if from == nil || to == nil {
		return entity.NewTopologyError(-1, -1, "link with nil segment")
	}
	if err := m.checkMutable(from.id, fromLane); err != nil {
		return err
	}
	if m.data[from.id] != from {
		return entity.NewTopologyError(from.id, -1, "segment is not part of the network")
	}
	if m.data[to.id] != to {
		return entity.NewTopologyError(to.id, -1, "segment is not part of the network")
	}
	if fromLane == entity.OVERTAKING_LANE || toLane == entity.OVERTAKING_LANE {
		return entity.NewTopologyError(from.id, fromLane, "overtaking lane cannot be linked")
	}
	src := from.LaneSegment(fromLane)
	if src == nil {
		return entity.NewTopologyError(from.id, fromLane, "lane does not exist")
	}
	dst := to.LaneSegment(toLane)
	if dst == nil {
		return entity.NewTopologyError(to.id, toLane, "lane does not exist")
	}
	if src.SinkLane() != nil {
		return entity.NewTopologyError(from.id, fromLane, "lane already has a sink (%s)", src.SinkLane().ID())
	}
	if dst.SourceLane() != nil {
		return entity.NewTopologyError(to.id, toLane, "lane already has a source (%s)", dst.SourceLane().ID())
	}
	src.SetSink(dst)
	dst.SetSource(src)
	return nil
}

// SetPeer 设置对向路段
// 功能：将两条长度相同的路段配对为双向道路，并为双方创建0号超车车道
// 返回：任一方已有对向路段、长度不一致或路网已冻结时返回TopologyError
func (m *RoadManager) SetPeer(a, b *Road) error {
	if err := m.checkMutable(a.id, -1); err != nil {
		return err
	}
	if a == b {
		return entity.NewTopologyError(a.id, -1, "segment cannot be its own peer")
	}
	if a.peer != nil || b.peer != nil {
		return entity.NewTopologyError(a.id, -1, "peer already set (peer of %d: %v, peer of %d: %v)", a.id, a.peer != nil, b.id, b.peer != nil)
	}
	if math.Abs(a.length-b.length) > peerLengthTolerance {
		return entity.NewTopologyError(a.id, -1, "peer segment %d length %.2f differs from %.2f", b.id, b.length, a.length)
	}
	a.peer, b.peer = b, a
	for _, r := range []*Road{a, b} {
		l := lane.New(r, entity.OVERTAKING_LANE, entity.LANE_TYPE_OVERTAKING, r.length)
		l.SetClosedEnd(true)
		r.lanes[entity.OVERTAKING_LANE] = l
		m.laneManager.Add(l)
	}
	return nil
}

// Freeze 冻结路网
// 功能：补全默认终点并校验可达性，之后不允许再修改拓扑
// 返回：存在无法到达终点（也不在环路上）的车道时返回TopologyError
// 算法说明：
// 1. 没有sink的车道：入口车道与超车车道末端封闭，其余车道成为吸收型终点
// 2. 构建车道有向图：纵向连接sink，横向连接同一路段相邻车道（变道）
// 3. Tarjan强连通分量中包含纵向连接的分量视为环路
// 4. 从吸收型终点与环路出发反向传播，所有车道都必须被标记
func (m *RoadManager) Freeze() error {
	if m.frozen {
		return nil
	}
	lanes := m.laneManager.Lanes()
	for _, l := range lanes {
		if l.SinkLane() != nil {
			continue
		}
		switch l.Type() {
		case entity.LANE_TYPE_ENTRANCE, entity.LANE_TYPE_OVERTAKING:
			l.SetClosedEnd(true)
		default:
			l.SetAbsorbing(true)
		}
	}
	if err := m.checkReachability(lanes); err != nil {
		return err
	}
	m.frozen = true
	log.Infof("road network frozen: %d segments, %d lanes", len(m.roads), len(lanes))
	return nil
}

func (m *RoadManager) checkReachability(lanes []*lane.Lane) error {
	index := lo.SliceToMap(lo.Range(len(lanes)), func(i int) (*lane.Lane, int64) {
		return lanes[i], int64(i)
	})
	g := simple.NewDirectedGraph()
	for i := range lanes {
		g.AddNode(simple.Node(i))
	}
	good := make([]bool, len(lanes))
	connect := func(from, to *lane.Lane) {
		if from == to {
			// 单车道首尾相连的环路
			good[index[from]] = true
			return
		}
		g.SetEdge(g.NewEdge(simple.Node(index[from]), simple.Node(index[to])))
	}
	for _, l := range lanes {
		if l.IsAbsorbing() {
			good[index[l]] = true
		}
		if sink := l.SinkLane(); sink != nil {
			connect(l, sink)
		}
		r := l.Road().(*Road)
		for _, d := range []int32{entity.TO_LEFT, entity.TO_RIGHT} {
			if side := r.LaneSegment(l.Index() + d); side != nil {
				connect(l, side)
			}
		}
	}
	// 仅由横向变道边构成的分量不是真正的环路，分量内必须包含纵向连接
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) <= 1 {
			continue
		}
		members := lo.SliceToMap(scc, func(n graph.Node) (int64, struct{}) { return n.ID(), struct{}{} })
		cyclic := lo.SomeBy(scc, func(n graph.Node) bool {
			sink := lanes[n.ID()].SinkLane()
			if sink == nil {
				return false
			}
			_, ok := members[index[sink]]
			return ok
		})
		if cyclic {
			for _, n := range scc {
				good[n.ID()] = true
			}
		}
	}
	// 反向传播：若任一后继可达则本车道可达
	for changed := true; changed; {
		changed = false
		for i := range lanes {
			if good[i] {
				continue
			}
			to := g.From(int64(i))
			for to.Next() {
				if good[to.Node().ID()] {
					good[i] = true
					changed = true
					break
				}
			}
		}
	}
	for i, ok := range good {
		if !ok {
			l := lanes[i]
			return entity.NewTopologyError(l.Road().ID(), l.Index(), "lane cannot reach an absorbing sink or a cycle")
		}
	}
	return nil
}

// Update 更新全部路段的信号灯
func (m *RoadManager) Update(dt float64) {
	for _, r := range m.roads {
		r.Update(dt)
	}
}

// VehicleCount 路网中的车辆数
func (m *RoadManager) VehicleCount() int {
	return m.laneManager.VehicleCount()
}
