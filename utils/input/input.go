// 场景输入：将YAML场景文件解析为冻结后的路网、车辆原型、交通源与初始车辆
package input

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/source"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
	"gopkg.in/yaml.v2"
)

// generatorSeedBase 交通源原型生成器的种子偏移，与车辆ID（int32）的种子区间不重叠
const generatorSeedBase = uint64(1) << 32

var lightStates = map[string]entity.LightState{
	"GREEN":  entity.LIGHT_STATE_GREEN,
	"YELLOW": entity.LIGHT_STATE_YELLOW,
	"RED":    entity.LIGHT_STATE_RED,
}

// Input 解析后的场景
type Input struct {
	Network    *road.RoadManager
	Vehicles   *vehicle.VehicleManager
	Sources    *source.SourceManager
	Prototypes map[string]*vehicle.Prototype
}

// Load 从文件加载场景
// 参数：path-场景文件路径，dt-仿真步长，seed-运行随机种子
func Load(path string, dt float64, seed uint64) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scenario %s", path)
	}
	in, err := Parse(data, dt, seed)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load scenario %s", path)
	}
	return in, nil
}

// Parse 解析场景数据
// 功能：按依赖顺序构建场景的全部对象
// 参数：data-YAML数据，dt-仿真步长，seed-运行随机种子
// 返回：场景，任何一步失败时返回包装后的ConfigError/TopologyError（可用errors.As匹配）
// 算法说明：
// 1. 车辆原型（跟车、变道模型参数在此校验）
// 2. 路段及其属性（瓶颈、限速、信号灯、限定车道、几何）
// 3. 车道连接与对向路段
// 4. 冻结路网（默认终点与可达性校验）
// 5. 初始车辆、出发时刻表与恒定流量交通源
func Parse(data []byte, dt float64, seed uint64) (*Input, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "invalid scenario yaml")
	}
	b := &builder{
		in: &Input{
			Network:    road.NewManager(),
			Vehicles:   vehicle.NewManager(seed),
			Sources:    source.NewManager(),
			Prototypes: make(map[string]*vehicle.Prototype),
		},
		seed:      seed,
		fractions: make(map[string]float64),
	}
	if err := b.prototypes(f.Prototypes, dt); err != nil {
		return nil, err
	}
	for _, rc := range f.Roads {
		if err := b.road(rc); err != nil {
			return nil, errors.Wrapf(err, "road %d", rc.ID)
		}
	}
	for i, lc := range f.Links {
		if err := b.link(lc); err != nil {
			return nil, errors.Wrapf(err, "link #%d", i)
		}
	}
	for i, pc := range f.Peers {
		if err := b.peer(pc); err != nil {
			return nil, errors.Wrapf(err, "peer #%d", i)
		}
	}
	if err := b.in.Network.Freeze(); err != nil {
		return nil, errors.Wrap(err, "invalid road network")
	}
	for i, vc := range f.Vehicles {
		if err := b.vehicle(vc); err != nil {
			return nil, errors.Wrapf(err, "vehicle #%d", i)
		}
	}
	for i, dc := range f.Departures {
		if err := b.departure(dc); err != nil {
			return nil, errors.Wrapf(err, "departure #%d", i)
		}
	}
	for i, sc := range f.Sources {
		if err := b.source(i, sc); err != nil {
			return nil, errors.Wrapf(err, "source #%d", i)
		}
	}
	b.in.Vehicles.Prepare()
	log.Infof("scenario: %d prototypes, %d roads, %d vehicles, %d sources, %d departures",
		len(b.in.Prototypes), len(b.in.Network.Segments()), b.in.Vehicles.Count(),
		len(b.in.Sources.Inflows()), b.in.Sources.Schedule().Len())
	return b.in, nil
}

type builder struct {
	in        *Input
	seed      uint64
	fractions map[string]float64 // 原型自身配置的生成比例
}

func (b *builder) prototypes(cfgs []vehicle.PrototypeConfig, dt float64) error {
	if len(cfgs) == 0 {
		return entity.NewConfigError("scenario", "prototypes", "at least one prototype is required")
	}
	for _, cfg := range cfgs {
		if _, ok := b.in.Prototypes[cfg.Label]; ok {
			return entity.NewConfigError("scenario", "prototypes", "duplicate prototype %q", cfg.Label)
		}
		p, err := vehicle.NewPrototype(cfg, dt)
		if err != nil {
			return err
		}
		b.in.Prototypes[cfg.Label] = p
		b.fractions[cfg.Label] = cfg.Fraction
	}
	return nil
}

func (b *builder) prototype(label string) (*vehicle.Prototype, error) {
	if p, ok := b.in.Prototypes[label]; ok {
		return p, nil
	}
	return nil, entity.NewConfigError("scenario", "prototype", "unknown prototype %q", label)
}

func (b *builder) road(rc RoadConfig) error {
	defs := make([]road.LaneDef, len(rc.Lanes))
	for i, name := range rc.Lanes {
		t, ok := entity.ParseLaneType(name)
		if !ok {
			return entity.NewConfigError(fmt.Sprintf("road %d", rc.ID), "lanes", "unknown lane type %q", name)
		}
		defs[i] = road.LaneDef{Index: int32(i) + entity.MOST_INNER_LANE, Type: t}
	}
	r, err := road.NewRoad(rc.ID, rc.UserID, rc.Length, defs)
	if err != nil {
		return err
	}
	for _, bc := range rc.Bottlenecks {
		alpha := entity.Alpha{T: orOne(bc.AlphaT), V0: orOne(bc.AlphaV0), A: orOne(bc.AlphaA)}
		if err := r.AddBottleneck(road.Bottleneck{Start: bc.Start, End: bc.End, Alpha: alpha}); err != nil {
			return err
		}
	}
	for _, sc := range rc.SpeedLimits {
		if err := r.AddSpeedLimit(road.SpeedLimit{Start: sc.Start, End: sc.End, Limit: sc.Limit}); err != nil {
			return err
		}
	}
	for _, lc := range rc.Lights {
		phases := make([]road.LightPhase, len(lc.Phases))
		for i, pc := range lc.Phases {
			s, ok := lightStates[pc.State]
			if !ok {
				return entity.NewConfigError(fmt.Sprintf("road %d", rc.ID), "lights", "unknown light state %q, must be one of %v", pc.State, lo.Keys(lightStates))
			}
			phases[i] = road.LightPhase{State: s, Duration: pc.Duration}
		}
		tl, err := road.NewTrafficLight(lc.Position, phases, lc.Offset)
		if err != nil {
			return err
		}
		if err := r.AddLight(tl); err != nil {
			return err
		}
	}
	for _, rs := range rc.Restrictions {
		if err := r.AddRestriction(road.Restriction{Lane: rs.Lane, Labels: rs.Labels}); err != nil {
			return err
		}
	}
	if len(rc.Geometry) > 0 {
		line := make([]road.Point, len(rc.Geometry))
		for i, p := range rc.Geometry {
			if len(p) != 2 {
				return entity.NewConfigError(fmt.Sprintf("road %d", rc.ID), "geometry", "point %d must be [x, y], got %v", i, p)
			}
			line[i] = road.Point{X: p[0], Y: p[1]}
		}
		if err := r.SetGeometry(line); err != nil {
			return err
		}
	}
	return b.in.Network.AddSegment(r)
}

func orOne(x float64) float64 {
	if x == 0 {
		return 1
	}
	return x
}

// resolve 解析路段引用
// 算法说明：先按用户ID查找，失败时按数字ID查找
func (b *builder) resolve(ref RoadRef) (*road.Road, error) {
	if r := b.in.Network.FindByUserID(ref); r != nil {
		return r, nil
	}
	if id, err := strconv.ParseInt(ref, 10, 32); err == nil {
		if r := b.in.Network.FindByID(int32(id)); r != nil {
			return r, nil
		}
	}
	return nil, entity.NewTopologyError(-1, -1, "unknown road %q", ref)
}

// resolveExit 解析可选的目标出口路段
func (b *builder) resolveExit(ref RoadRef) (*int32, error) {
	if ref == "" {
		return nil, nil
	}
	r, err := b.resolve(ref)
	if err != nil {
		return nil, err
	}
	return lo.ToPtr(r.ID()), nil
}

func (b *builder) link(lc LinkConfig) error {
	from, err := b.resolve(lc.From)
	if err != nil {
		return err
	}
	to, err := b.resolve(lc.To)
	if err != nil {
		return err
	}
	return b.in.Network.Link(lc.FromLane, from, lc.ToLane, to)
}

func (b *builder) peer(pc PeerConfig) error {
	a, err := b.resolve(pc.A)
	if err != nil {
		return err
	}
	c, err := b.resolve(pc.B)
	if err != nil {
		return err
	}
	return b.in.Network.SetPeer(a, c)
}

func (b *builder) options(vc VehicleConfig) (*road.Road, *vehicle.Prototype, vehicle.Options, error) {
	r, err := b.resolve(vc.Road)
	if err != nil {
		return nil, nil, vehicle.Options{}, err
	}
	p, err := b.prototype(vc.Prototype)
	if err != nil {
		return nil, nil, vehicle.Options{}, err
	}
	exit, err := b.resolveExit(vc.ExitRoad)
	if err != nil {
		return nil, nil, vehicle.Options{}, err
	}
	return r, p, vehicle.Options{Position: vc.Position, Speed: vc.Speed, ExitRoad: exit, FixedLane: vc.FixedLane}, nil
}

func (b *builder) vehicle(vc VehicleConfig) error {
	r, p, opts, err := b.options(vc)
	if err != nil {
		return err
	}
	l := r.LaneSegment(vc.Lane)
	if l == nil {
		return entity.NewTopologyError(r.ID(), vc.Lane, "lane does not exist")
	}
	if opts.Position < 0 || opts.Position > r.Length() {
		return entity.NewTopologyError(r.ID(), vc.Lane, "position %.2f out of road range [0, %.2f]", opts.Position, r.Length())
	}
	// 初始车辆之间不允许完全重合，重叠由第一次一致性检查报告
	if lo.ContainsBy(l.Vehicles(), func(v entity.IVehicle) bool { return v.Position() == opts.Position }) {
		return entity.NewTopologyError(r.ID(), vc.Lane, "another vehicle is already at position %.2f", opts.Position)
	}
	return r.AddVehicle(b.in.Vehicles.New(p, opts), vc.Lane)
}

func (b *builder) departure(dc DepartureConfig) error {
	r, p, opts, err := b.options(dc.VehicleConfig)
	if err != nil {
		return err
	}
	return b.in.Sources.Schedule().Add(&source.Departure{
		Time:      dc.Time,
		Road:      r,
		Lane:      dc.Lane,
		Prototype: p,
		Options:   opts,
		MinGap:    dc.MinGap,
	})
}

// source 创建恒定流量交通源
// 说明：原型按名称排序后构造生成器，保证比例与随机数流的对应关系与map遍历顺序无关
func (b *builder) source(i int, sc SourceConfig) error {
	r, err := b.resolve(sc.Road)
	if err != nil {
		return err
	}
	exit, err := b.resolveExit(sc.ExitRoad)
	if err != nil {
		return err
	}
	fractions := sc.Prototypes
	if len(fractions) == 0 {
		fractions = b.fractions
	}
	labels := lo.Keys(fractions)
	sort.Strings(labels)
	protos := make([]*vehicle.Prototype, len(labels))
	for j, label := range labels {
		if protos[j], err = b.prototype(label); err != nil {
			return err
		}
	}
	ws := lo.Map(labels, func(label string, _ int) float64 { return fractions[label] })
	g, err := vehicle.NewGenerator(protos, ws, randengine.Stream(b.seed, generatorSeedBase+uint64(i)))
	if err != nil {
		return err
	}
	s, err := source.NewInflow(r, source.InflowConfig{
		Rate:     sc.Rate,
		Speed:    sc.Speed,
		Lanes:    sc.Lanes,
		ExitRoad: exit,
		MinGap:   sc.MinGap,
	}, g)
	if err != nil {
		return err
	}
	b.in.Sources.AddInflow(s)
	return nil
}
