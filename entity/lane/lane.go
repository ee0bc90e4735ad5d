package lane

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
)

// Lane 车道（路段中一条车道的一段）
// 功能：维护车道上按车尾位置严格递减排列的车辆序列，提供跨路段的邻车查询
// 说明：sink/source为非拥有的引用，所有车道由所属路段持有，由路网统一管理
type Lane struct {
	road   entity.IRoad    // 所属路段
	index  int32           // 车道编号，0为超车车道
	typ    entity.LaneType // 车道类型
	length float64         // 车道长度

	sink   *Lane // 下游车道
	source *Lane // 上游车道

	absorbing bool  // 吸收型终点：驶出末端的车辆被移除
	closedEnd bool  // 末端封闭：车辆需要在末端之前停车
	outflow   int32 // 被吸收的车辆累计数

	vehicles container.List[entity.IVehicle] // 车辆序列
	staged   stagedBuffer                    // 批量变道的暂存区
}

// New 创建车道
// 功能：根据所属路段、编号和类型创建车道
// 参数：road-所属路段，index-车道编号，typ-车道类型，length-车道长度
// 返回：新创建的车道
func New(road entity.IRoad, index int32, typ entity.LaneType, length float64) *Lane {
	l := &Lane{
		road:   road,
		index:  index,
		typ:    typ,
		length: length,
	}
	l.vehicles.ID = l.ID()
	return l
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{%s, %v, len=%d}", l.ID(), l.typ, l.vehicles.Len())
}

// ID 车道标识
// 返回：{路段ID}/{车道编号}
func (l *Lane) ID() string {
	if l.road == nil {
		return fmt.Sprintf("?/%d", l.index)
	}
	return fmt.Sprintf("%d/%d", l.road.ID(), l.index)
}

func (l *Lane) Road() entity.IRoad {
	return l.road
}

func (l *Lane) Index() int32 {
	return l.index
}

func (l *Lane) Type() entity.LaneType {
	return l.typ
}

func (l *Lane) Length() float64 {
	return l.length
}

// Sink 下游车道
// 说明：没有下游时返回nil接口（而不是包含nil指针的接口）
func (l *Lane) Sink() entity.ILane {
	if l.sink == nil {
		return nil
	}
	return l.sink
}

// Source 上游车道
func (l *Lane) Source() entity.ILane {
	if l.source == nil {
		return nil
	}
	return l.source
}

// SinkLane 下游车道（具体类型）
func (l *Lane) SinkLane() *Lane {
	return l.sink
}

// SourceLane 上游车道（具体类型）
func (l *Lane) SourceLane() *Lane {
	return l.source
}

// SetSink 设置下游车道，仅在路网构建阶段由Link调用
func (l *Lane) SetSink(sink *Lane) {
	l.sink = sink
}

// SetSource 设置上游车道，仅在路网构建阶段由Link调用
func (l *Lane) SetSource(source *Lane) {
	l.source = source
}

func (l *Lane) IsAbsorbing() bool {
	return l.absorbing
}

// SetAbsorbing 设置为吸收型终点
func (l *Lane) SetAbsorbing(absorbing bool) {
	l.absorbing = absorbing
}

func (l *Lane) HasClosedEnd() bool {
	return l.closedEnd
}

// SetClosedEnd 设置车道末端封闭（入口加速车道末端、超车车道末端）
func (l *Lane) SetClosedEnd(closed bool) {
	l.closedEnd = closed
}

// Outflow 被吸收的车辆累计数
func (l *Lane) Outflow() int32 {
	return l.outflow
}

func (l *Lane) Len() int {
	return l.vehicles.Len()
}

// Vehicles 车辆序列（车尾位置严格递减），调用方不得修改
func (l *Lane) Vehicles() []entity.IVehicle {
	return l.vehicles.Values()
}

// Frontmost 最靠近车道末端的车辆
func (l *Lane) Frontmost() entity.IVehicle {
	v, _ := l.vehicles.First()
	return v
}

// Rearmost 最靠近车道起点的车辆
func (l *Lane) Rearmost() entity.IVehicle {
	v, _ := l.vehicles.Last()
	return v
}

// Insert 按位置插入车辆
// 功能：保持车尾位置严格递减的顺序插入车辆，并更新车辆所在车道
// 参数：v-待插入车辆
// 说明：同一位置已有车辆说明模型出现碰撞，属于程序错误，直接panic
func (l *Lane) Insert(v entity.IVehicle) {
	if err := l.vehicles.Insert(v); err != nil {
		log.Panicf("lane %s: insert vehicle %d at occupied position %.4f", l.ID(), v.ID(), v.Position())
	}
	v.SetLane(l)
}

// Remove 移除车辆
// 说明：车辆不在本车道属于程序错误，直接panic
func (l *Lane) Remove(v entity.IVehicle) {
	if !l.vehicles.Remove(v) {
		log.Panicf("lane %s: remove vehicle %d which is not in lane", l.ID(), v.ID())
	}
}

// RemoveFrontmost 移除最靠近车道末端的车辆
// 返回：被移除的车辆，车道为空时返回nil
func (l *Lane) RemoveFrontmost() entity.IVehicle {
	v, ok := l.vehicles.RemoveFirst()
	if !ok {
		return nil
	}
	return v
}

// Absorb 吸收驶出路网的车辆
// 功能：从车道中移除车辆并累计流出量
func (l *Lane) Absorb(v entity.IVehicle) {
	l.Remove(v)
	l.outflow++
}

// FrontNeighbor 前方邻车查询
// 功能：返回车尾位置严格大于pos的最近车辆
// 参数：pos-查询位置（本车道坐标系）
// 返回：邻车及换算到本车道坐标系的位置，不存在时返回nil
// 算法说明：
// 1. 二分查找本车道中第一个位置小于等于pos的下标i，若i>0则data[i-1]即为所求
// 2. 否则沿下游链查找第一个非空车道的最后一辆车，位置加上途经车道长度之和
// 3. 环形路网绕行一周回到本车道后停止
func (l *Lane) FrontNeighbor(pos float64) *entity.Neighbor {
	if i := l.vehicles.SearchAbove(pos); i > 0 {
		v := l.vehicles.At(i - 1)
		return &entity.Neighbor{Vehicle: v, Position: v.Position()}
	}
	return l.frontFromSink()
}

// RearNeighbor 后方邻车查询
// 功能：返回车尾位置小于等于pos的最近车辆
// 参数：pos-查询位置（本车道坐标系）
// 返回：邻车及换算到本车道坐标系的位置，不存在时返回nil
// 说明：本车道没有时沿上游链查找，位置减去途经上游车道长度之和
func (l *Lane) RearNeighbor(pos float64) *entity.Neighbor {
	if i := l.vehicles.SearchAbove(pos); i < l.vehicles.Len() {
		v := l.vehicles.At(i)
		return &entity.Neighbor{Vehicle: v, Position: v.Position()}
	}
	return l.rearFromSource()
}

// FrontVehicleOf 本车道中车辆v的前车
// 说明：v必须在本车道中
func (l *Lane) FrontVehicleOf(v entity.IVehicle) *entity.Neighbor {
	i := l.vehicles.IndexOf(v)
	if i < 0 {
		log.Panicf("lane %s: vehicle %d is not in lane", l.ID(), v.ID())
	}
	if i > 0 {
		f := l.vehicles.At(i - 1)
		return &entity.Neighbor{Vehicle: f, Position: f.Position()}
	}
	return l.frontFromSink()
}

// RearVehicleOf 本车道中车辆v的后车
// 说明：v必须在本车道中
func (l *Lane) RearVehicleOf(v entity.IVehicle) *entity.Neighbor {
	i := l.vehicles.IndexOf(v)
	if i < 0 {
		log.Panicf("lane %s: vehicle %d is not in lane", l.ID(), v.ID())
	}
	if i+1 < l.vehicles.Len() {
		b := l.vehicles.At(i + 1)
		return &entity.Neighbor{Vehicle: b, Position: b.Position()}
	}
	return l.rearFromSource()
}

// RearVehicleOnSink 下游车道链上的第一辆车（换算到本车道坐标系）
func (l *Lane) RearVehicleOnSink() *entity.Neighbor {
	return l.frontFromSink()
}

func (l *Lane) frontFromSink() *entity.Neighbor {
	offset := l.length
	for cur := l.sink; cur != nil; cur = cur.sink {
		if v, ok := cur.vehicles.Last(); ok {
			return &entity.Neighbor{Vehicle: v, Position: v.Position() + offset}
		}
		if cur == l {
			break
		}
		offset += cur.length
	}
	return nil
}

func (l *Lane) rearFromSource() *entity.Neighbor {
	offset := 0.0
	for cur := l.source; cur != nil; cur = cur.source {
		offset -= cur.length
		if v, ok := cur.vehicles.First(); ok {
			return &entity.Neighbor{Vehicle: v, Position: v.Position() + offset}
		}
		if cur == l {
			break
		}
	}
	return nil
}

// NextStopLine 前方停止线查询
// 功能：查找pos前方lookahead范围内最近的红/黄灯停止线或车道封闭端
// 参数：pos-车头位置，lookahead-前瞻距离
// 返回：停止线（位置换算到本车道坐标系），不存在时返回nil
// 说明：绿灯不返回；沿下游链继续查找直至超出前瞻距离
func (l *Lane) NextStopLine(pos, lookahead float64) *entity.StopLine {
	end := pos + lookahead
	offset := 0.0
	from := pos
	for cur := l; cur != nil; cur = cur.sink {
		if cur.road != nil {
			if sl := cur.road.NextLight(from-offset, math.Min(end-offset, cur.length)); sl != nil &&
				sl.State != entity.LIGHT_STATE_GREEN {
				return &entity.StopLine{Position: sl.Position + offset, State: sl.State}
			}
		}
		if cur.closedEnd && cur.sink == nil && offset+cur.length <= end {
			return &entity.StopLine{Position: offset + cur.length, State: entity.LIGHT_STATE_RED}
		}
		offset += cur.length
		if offset >= end || (cur.sink == l) {
			break
		}
		from = offset
	}
	return nil
}

// OncomingNeighbor 迎面来车查询
// 功能：在对向路段的1号车道中查找迎面驶来、车头（朝向本车的一端）位于pos之后的最近车辆
// 参数：pos-查询位置（本车道坐标系）
// 返回：邻车，Position为其朝向本车一端在本车道坐标系中的位置；没有对向路段时返回nil
// 算法说明：对向车辆车尾位置为p、车长为len时，其车头在本车道坐标系中位于L-(p+len)；
// 对向车道按车尾有序，二分定位后通常只需检查一两辆车
func (l *Lane) OncomingNeighbor(pos float64) *entity.Neighbor {
	if l.road == nil || l.road.Peer() == nil {
		return nil
	}
	peerLane, ok := l.road.Peer().Lane(entity.MOST_INNER_LANE).(*Lane)
	if !ok || peerLane == nil {
		return nil
	}
	// 对向车道坐标系中车头需满足 p+len < L-pos，从车尾不超过L-pos的第一辆车开始向后找
	limit := l.length - pos
	vs := &peerLane.vehicles
	for i := vs.SearchAbove(limit); i < vs.Len(); i++ {
		if v := vs.At(i); v.FrontPosition() < limit {
			return &entity.Neighbor{Vehicle: v, Position: l.length - v.FrontPosition()}
		}
	}
	return nil
}

// StageAdd 暂存待加入的车辆（批量变道）
func (l *Lane) StageAdd(v entity.IVehicle) {
	l.staged.add(v)
}

// StageRemove 暂存待移除的车辆（批量变道）
func (l *Lane) StageRemove(v entity.IVehicle) {
	l.staged.remove(v)
}

// ApplyStaged 应用暂存的车辆变动
// 功能：先移除再插入，保持有序性
// 说明：不同车道之间互不影响，可以并行调用
func (l *Lane) ApplyStaged() {
	l.staged.apply(l)
}

// Resort 恢复车辆序列的有序性
// 功能：积分后若出现逆序（碰撞导致的超越），取出逆序车辆后重新归并
// 返回：因位置完全重合而无法归并的车辆（这些车辆被直接放回末尾以保证不丢失）
func (l *Lane) Resort() []entity.IVehicle {
	unsorted := l.vehicles.PopUnsorted()
	if len(unsorted) == 0 {
		return nil
	}
	rejected := l.vehicles.Merge(unsorted)
	for _, v := range rejected {
		// 位置完全重合时轻微后移以保持严格有序，一致性检查会报告碰撞
		for {
			v.SetPosition(math.Nextafter(v.Position(), math.Inf(-1)))
			if err := l.vehicles.Insert(v); err == nil {
				break
			}
		}
	}
	return rejected
}

// CheckConsistency 一致性检查
// 功能：检查相邻两车的净间距（含下游车道第一辆车），净间距为负视为碰撞
// 返回：所有碰撞记录
func (l *Lane) CheckConsistency() (crashes []*entity.CrashError) {
	vs := l.vehicles.Values()
	for i := 1; i < len(vs); i++ {
		front, back := vs[i-1], vs[i]
		if gap := front.Position() - back.FrontPosition(); gap < 0 {
			crashes = append(crashes, &entity.CrashError{
				Lane: l.ID(), Front: front.ID(), Back: back.ID(),
				FrontPos: front.Position(), BackPos: back.Position(), Gap: gap,
			})
		}
	}
	if len(vs) > 0 {
		back := vs[0]
		if front := l.frontFromSink(); front != nil && front.Vehicle != back {
			if gap := front.Position - back.FrontPosition(); gap < 0 {
				crashes = append(crashes, &entity.CrashError{
					Lane: l.ID(), Front: front.Vehicle.ID(), Back: back.ID(),
					FrontPos: front.Position, BackPos: back.Position(), Gap: gap,
				})
			}
		}
	}
	return crashes
}
