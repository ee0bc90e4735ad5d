package source

import (
	"github.com/tsinghua-fib-lab/lanesim/entity/lane"
)

// entryGap 在车道起点放入长度为length的车辆时前后的净间距
// 返回：前方净间距，后方净间距（没有前车/后车时为车道长度）
// 说明：后方包括上游车道中尚未驶入本车道的车辆
func entryGap(l *lane.Lane, pos, length float64) (front, back float64) {
	front, back = l.Length(), l.Length()
	if n := l.FrontNeighbor(pos); n != nil {
		front = n.Position - (pos + length)
	}
	if n := l.RearNeighbor(pos); n != nil {
		back = pos - n.FrontPosition()
	}
	return
}

// fits 车辆能否在pos处插入
func fits(l *lane.Lane, pos, length, minGap float64) bool {
	front, back := entryGap(l, pos, length)
	return front >= minGap && back >= minGap
}
