package road

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// LaneWidth 车道宽度（米），仅用于输出时计算车道中心线偏移
const LaneWidth = 3.5

// Point 平面坐标点
type Point struct {
	X, Y float64
}

// SetGeometry 设置路段中心线（道路最左侧边线）
// 功能：中心线折线长度与路段长度不一致时，按比例映射位置
// 返回：折线点数少于2时返回ConfigError
func (r *Road) SetGeometry(line []Point) error {
	if len(line) < 2 {
		return entity.NewConfigError(fmt.Sprintf("road %d", r.id), "geometry", "polyline needs at least 2 points, got %d", len(line))
	}
	r.geometry = line
	return nil
}

// Geometry 路段中心线，未设置时为nil
func (r *Road) Geometry() []Point {
	return r.geometry
}

// PositionAt 计算路段上某车道某位置的平面坐标
// 功能：沿中心线插值并向右侧偏移到车道中心
// 参数：s-路段坐标系位置，laneIndex-车道编号（0号超车车道位于最左侧车道左方）
// 返回：坐标，是否成功（未设置几何时失败）
// 算法说明：
// 1. 将s按折线总长与路段长度之比缩放
// 2. 找到所在折线段并线性插值
// 3. 沿折线段法向（右侧）偏移(laneIndex-0.5)*LaneWidth
func (r *Road) PositionAt(s float64, laneIndex int32) (Point, bool) {
	if len(r.geometry) < 2 {
		return Point{}, false
	}
	total := 0.0
	for i := 1; i < len(r.geometry); i++ {
		total += dist(r.geometry[i-1], r.geometry[i])
	}
	target := math.Max(0, math.Min(s, r.length)) / r.length * total
	offset := (float64(laneIndex) - 0.5) * LaneWidth
	acc := 0.0
	for i := 1; i < len(r.geometry); i++ {
		a, b := r.geometry[i-1], r.geometry[i]
		d := dist(a, b)
		if acc+d >= target || i == len(r.geometry)-1 {
			k := 0.0
			if d > 0 {
				k = math.Min(1, (target-acc)/d)
			}
			dx, dy := b.X-a.X, b.Y-a.Y
			if d > 0 {
				dx, dy = dx/d, dy/d
			}
			// 右侧法向量为(dy, -dx)
			return Point{
				X: a.X + (b.X-a.X)*k + dy*offset,
				Y: a.Y + (b.Y-a.Y)*k - dx*offset,
			}, true
		}
		acc += d
	}
	return Point{}, false
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
