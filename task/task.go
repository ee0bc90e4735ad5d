package task

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/clock"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/entity/source"
	"github.com/tsinghua-fib-lab/lanesim/entity/vehicle"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
	"github.com/tsinghua-fib-lab/lanesim/utils/parallel"
)

// waitForServerReady 轮询RPC服务地址，直到收到任意HTTP响应
func waitForServerReady(addr string, retries int, interval time.Duration) error {
	client := &http.Client{Timeout: interval}
	var lastErr error
	for i := 0; i < retries; i++ {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err
		time.Sleep(interval)
	}
	return errors.Wrapf(lastErr, "rpc server %s not ready after %d attempts", addr, retries)
}

// Recorder 输出器
// 功能：在每个输出步读取路网状态并记录，不得修改任何仿真状态
type Recorder interface {
	Record(t float64, step int32, network *road.RoadManager) error
	Close() error
}

// Stats 仿真运行统计
type Stats struct {
	Step           int32
	T              float64
	Vehicles       int     // 路网中的车辆数
	Created        int32   // 累计创建的车辆数
	Outflow        int32   // 累计驶出路网的车辆数
	Waiting        int     // 交通源排队车辆数
	MeanSpeed      float64 // 平均速度（不含障碍物）
	Crashes        int     // 累计碰撞次数
	LaneChanges    int     // 累计变道次数
	DroppedChanges int     // 因与同步变道冲突而取消的变道次数
}

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：仿真循环是唯一的写者，每步持有写锁；RPC读者持有读锁
type Context struct {
	mtx sync.RWMutex
	// 关闭指令
	closed   atomic.Bool
	shutdown sync.Once

	// 时钟
	clock *clock.Clock
	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 路网
	network *road.RoadManager
	// 车辆登记表
	vehicles *vehicle.VehicleManager
	// 交通源
	sources *source.SourceManager

	recorders []Recorder
	server    *http.Server

	crashes        int
	laneChanges    int
	droppedChanges int
}

// NewContext 创建新的仿真任务上下文
// 功能：校验配置并接管场景中的路网、车辆与交通源
// 参数：c-配置对象，in-已解析的场景
// 返回：初始化完成的Context实例，配置非法时返回ConfigError
func NewContext(c config.Config, in *input.Input) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	parallel.SetLimit(rc.C.Parallel)
	ctx := &Context{
		clock:         clock.New(c.Control.Step),
		runtimeConfig: rc,
		network:       in.Network,
		vehicles:      in.Vehicles,
		sources:       in.Sources,
	}
	log.Infof("Road: %v", len(ctx.network.Segments()))
	log.Infof("Lane: %v", len(ctx.network.LaneManager().Lanes()))
	log.Infof("Vehicle: %v", ctx.vehicles.Count())
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Network() *road.RoadManager {
	return ctx.network
}

func (ctx *Context) Vehicles() *vehicle.VehicleManager {
	return ctx.vehicles
}

func (ctx *Context) Sources() *source.SourceManager {
	return ctx.sources
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// AddRecorder 添加输出器
func (ctx *Context) AddRecorder(r Recorder) {
	ctx.recorders = append(ctx.recorders, r)
}

// Stats 当前运行统计
// 说明：调用方需自行保证与仿真循环互斥（RPC通过读锁）
func (ctx *Context) Stats() Stats {
	return Stats{
		Step:           ctx.clock.InternalStep,
		T:              ctx.clock.T,
		Vehicles:       ctx.vehicles.Count(),
		Created:        ctx.vehicles.Created(),
		Outflow:        ctx.network.LaneManager().Outflow(),
		Waiting:        ctx.sources.Waiting(),
		MeanSpeed:      ctx.vehicles.MeanSpeed(),
		Crashes:        ctx.crashes,
		LaneChanges:    ctx.laneChanges,
		DroppedChanges: ctx.droppedChanges,
	}
}

// Serve 启动RPC服务
// 功能：在listen地址上提供时钟与路网状态查询，等待服务就绪后返回
func (ctx *Context) Serve(listen string) error {
	ctx.server = &http.Server{Addr: listen, Handler: ctx.Handler()}
	go func() {
		if err := ctx.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("failed to serve: %v", err)
		}
	}()
	addr := listen
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return waitForServerReady("http://"+addr, 10, 100*time.Millisecond)
}

// Close 请求停止仿真
// 说明：可以在信号处理协程中调用，仿真循环在当前步结束后退出
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.closed.Store(true)
	log.Infof("close requested")
}

// stop 关闭输出器与RPC服务，只执行一次
func (ctx *Context) stop() {
	ctx.shutdown.Do(func() {
		for _, r := range ctx.recorders {
			if err := r.Close(); err != nil {
				log.Errorf("failed to close recorder: %v", err)
			}
		}
		if ctx.server != nil {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ctx.server.Shutdown(c); err != nil {
				log.Errorf("failed to shutdown rpc server: %v", err)
			}
		}
	})
}
