package output

import (
	"fmt"
	"os"
	"path/filepath"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
)

// NetworkFeatures 路网几何
// 功能：每条设置了几何的路段输出一条中心线LineString，属性包含路段ID与车道数
func NetworkFeatures(network *road.RoadManager) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range network.Segments() {
		line := r.Geometry()
		if line == nil {
			continue
		}
		coords := make([][]float64, len(line))
		for i, p := range line {
			coords[i] = []float64{p.X, p.Y}
		}
		f := geojson.NewLineStringFeature(coords)
		f.SetProperty("road", r.ID())
		f.SetProperty("user_id", r.UserID())
		f.SetProperty("lanes", r.LaneCount())
		f.SetProperty("length", r.Length())
		fc.AddFeature(f)
	}
	return fc
}

// VehicleFeatures 车辆快照
// 功能：每辆车以车头位置输出一个Point，没有几何的路段上的车辆被跳过
func VehicleFeatures(t float64, network *road.RoadManager) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range network.Segments() {
		for _, v := range r.Vehicles() {
			p, ok := r.PositionAt(v.FrontPosition(), v.Lane().Index())
			if !ok {
				continue
			}
			f := geojson.NewPointFeature([]float64{p.X, p.Y})
			f.SetProperty("t", t)
			f.SetProperty("id", v.ID())
			f.SetProperty("label", v.Label())
			f.SetProperty("road", r.ID())
			f.SetProperty("lane", v.Lane().Index())
			f.SetProperty("position", v.Position())
			f.SetProperty("speed", v.Speed())
			fc.AddFeature(f)
		}
	}
	return fc
}

// GeoJSONRecorder GeoJSON快照输出
// 功能：创建时写出路网几何network.geojson，之后每个输出步写出一份车辆快照snapshot_{step}.geojson
type GeoJSONRecorder struct {
	dir string
}

// NewGeoJSONRecorder 创建GeoJSON快照输出
func NewGeoJSONRecorder(dir string, network *road.RoadManager) (*GeoJSONRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", dir)
	}
	g := &GeoJSONRecorder{dir: dir}
	if err := g.write("network.geojson", NetworkFeatures(network)); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GeoJSONRecorder) write(name string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}
	return errors.Wrapf(os.WriteFile(filepath.Join(g.dir, name), data, 0o644), "write %s", name)
}

func (g *GeoJSONRecorder) Record(t float64, step int32, network *road.RoadManager) error {
	return g.write(fmt.Sprintf("snapshot_%d.geojson", step), VehicleFeatures(t, network))
}

func (g *GeoJSONRecorder) Close() error {
	return nil
}
