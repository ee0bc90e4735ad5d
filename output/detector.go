package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

// DetectorHeader 断面检测器CSV的表头
var DetectorHeader = []string{"t", "road", "position", "lane", "count", "flow", "mean_speed"}

// odometer 可提供累计行驶距离的车辆
type odometer interface {
	Distance() float64
}

type laneCount struct {
	count    int
	speedSum float64
}

// detector 单个断面
type detector struct {
	road     *road.Road
	position float64
	lanes    map[int32]*laneCount
}

// DetectorRecorder 断面检测器
// 功能：统计两次输出之间车头越过各断面的车辆数、流量（辆/小时）与平均越线速度，按车道写入CSV
// 说明：越线判断使用车辆的累计行驶距离反推上一次输出时的车头位置，跨路段移交的车辆同样能被检测到
type DetectorRecorder struct {
	w         *csv.Writer
	closer    io.Closer
	detectors []*detector

	distance map[int32]float64 // 车辆ID -> 上一次输出时的累计行驶距离
	lastT    float64
	started  bool
}

// ResolveRoad 按用户ID或数字ID查找路段
func ResolveRoad(network *road.RoadManager, ref string) (*road.Road, error) {
	if r := network.FindByUserID(ref); r != nil {
		return r, nil
	}
	if id, err := strconv.ParseInt(ref, 10, 32); err == nil {
		if r := network.FindByID(int32(id)); r != nil {
			return r, nil
		}
	}
	return nil, entity.NewConfigError("detector", "road", "unknown road %q", ref)
}

// NewDetectorRecorder 创建断面检测器
// 参数：w-CSV输出（若实现io.Closer则在Close时关闭），network-路网，cfgs-断面配置
// 返回：检测器，路段不存在或断面位置越界时返回ConfigError
func NewDetectorRecorder(w io.Writer, network *road.RoadManager, cfgs []config.DetectorOutput) (*DetectorRecorder, error) {
	d := &DetectorRecorder{
		w:        csv.NewWriter(w),
		distance: make(map[int32]float64),
	}
	if c, ok := w.(io.Closer); ok {
		d.closer = c
	}
	for _, cfg := range cfgs {
		r, err := ResolveRoad(network, cfg.Road)
		if err != nil {
			return nil, err
		}
		if cfg.Position < 0 || cfg.Position > r.Length() {
			return nil, entity.NewConfigError("detector", "position", "position %.2f out of road %d range [0, %.2f]", cfg.Position, r.ID(), r.Length())
		}
		d.detectors = append(d.detectors, &detector{road: r, position: cfg.Position, lanes: make(map[int32]*laneCount)})
	}
	if err := d.w.Write(DetectorHeader); err != nil {
		return nil, err
	}
	return d, nil
}

// Record 统计并输出一个时间段
// 说明：第一次调用只建立基准，不输出数据行
func (d *DetectorRecorder) Record(t float64, step int32, network *road.RoadManager) error {
	seen := make(map[int32]float64, len(d.distance))
	for _, det := range d.detectors {
		for _, v := range det.road.Vehicles() {
			if v.IsObstacle() {
				continue
			}
			o, ok := v.(odometer)
			if !ok {
				continue
			}
			last, ok := d.distance[v.ID()]
			if !ok {
				continue
			}
			front := v.FrontPosition()
			if front-(o.Distance()-last) < det.position && det.position <= front {
				lc := det.lanes[v.Lane().Index()]
				if lc == nil {
					lc = &laneCount{}
					det.lanes[v.Lane().Index()] = lc
				}
				lc.count++
				lc.speedSum += v.Speed()
			}
		}
	}
	for _, r := range network.Segments() {
		for _, v := range r.Vehicles() {
			if o, ok := v.(odometer); ok {
				seen[v.ID()] = o.Distance()
			}
		}
	}
	d.distance = seen

	if !d.started {
		d.started = true
		d.lastT = t
		return nil
	}
	elapsed := t - d.lastT
	d.lastT = t
	if elapsed <= 0 {
		return nil
	}
	for _, det := range d.detectors {
		indices := lo.Keys(det.lanes)
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
		for _, i := range indices {
			lc := det.lanes[i]
			row := []string{
				strconv.FormatFloat(t, 'f', -1, 64),
				strconv.Itoa(int(det.road.ID())),
				strconv.FormatFloat(det.position, 'f', -1, 64),
				strconv.Itoa(int(i)),
				strconv.Itoa(lc.count),
				strconv.FormatFloat(float64(lc.count)/elapsed*3600, 'f', 2, 64),
				strconv.FormatFloat(lc.speedSum/float64(lc.count), 'f', 2, 64),
			}
			if err := d.w.Write(row); err != nil {
				return fmt.Errorf("detector write failed at step %d: %w", step, err)
			}
		}
		clear(det.lanes)
	}
	d.w.Flush()
	return d.w.Error()
}

// Close 写出缓冲区并关闭输出
func (d *DetectorRecorder) Close() error {
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		return err
	}
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
