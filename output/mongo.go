package output

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

// TrajectoryPoint 一辆车在一个输出步的状态
type TrajectoryPoint struct {
	Run      string  `bson:"run"`
	Step     int32   `bson:"step"`
	T        float64 `bson:"t"`
	ID       int32   `bson:"id"`
	Label    string  `bson:"label"`
	Road     int32   `bson:"road"`
	Lane     int32   `bson:"lane"`
	Position float64 `bson:"position"`
	Speed    float64 `bson:"speed"`
	Acc      float64 `bson:"acc"`
}

// Trajectory 提取当前输出步所有车辆的状态（不含障碍物）
func Trajectory(run string, t float64, step int32, network *road.RoadManager) []TrajectoryPoint {
	var points []TrajectoryPoint
	for _, r := range network.Segments() {
		for _, v := range r.Vehicles() {
			if v.IsObstacle() {
				continue
			}
			points = append(points, TrajectoryPoint{
				Run:      run,
				Step:     step,
				T:        t,
				ID:       v.ID(),
				Label:    v.Label(),
				Road:     r.ID(),
				Lane:     v.Lane().Index(),
				Position: v.Position(),
				Speed:    v.Speed(),
				Acc:      v.Acc(),
			})
		}
	}
	return points
}

// MongoRecorder MongoDB轨迹输出
// 功能：每个输出步向集合批量写入全部车辆状态，每次运行使用独立的run ID区分
type MongoRecorder struct {
	run    string
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoRecorder 连接MongoDB并创建轨迹输出
// 说明：创建(run, step)索引便于按时间回放
func NewMongoRecorder(cfg config.MongoOutput) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	col := client.Database(cfg.DB).Collection(cfg.Col)
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "run", Value: 1}, {Key: "step", Value: 1}}}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo create index")
	}
	m := &MongoRecorder{run: uuid.NewString(), client: client, col: col}
	log.Infof("trajectory run id: %s", m.run)
	return m, nil
}

// Run 本次运行的ID
func (m *MongoRecorder) Run() string {
	return m.run
}

func (m *MongoRecorder) Record(t float64, step int32, network *road.RoadManager) error {
	points := Trajectory(m.run, t, step, network)
	if len(points) == 0 {
		return nil
	}
	docs := make([]any, len(points))
	for i := range points {
		docs[i] = points[i]
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	_, err := m.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return errors.Wrapf(err, "mongo insert step %d", step)
}

func (m *MongoRecorder) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
