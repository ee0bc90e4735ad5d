package task

import (
	"flag"

	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/parallel"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.Tick()
	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) vehicles=%d",
			ctx.clock.InternalStep,
			hour, minute, second,
			ctx.vehicles.Count(),
		)
	}
}

// update 更新阶段，每步执行一次
// 功能：按固定顺序执行一步仿真
// 算法说明：
// 1. 信号灯推进
// 2. 加速度：按路段并行计算，全部计算完成后统一提交，保证所有车辆看到的都是上一步的状态
// 3. 变道：串行决策并暂存，统一应用
// 4. 积分：按路段并行更新位置与速度，之后恢复各车道的有序性
// 5. 边界：跨路段移交、驶出路网、交通源注入，最后应用车辆登记表的增删
// 6. 一致性检查：按crash_exit策略处理碰撞
// 7. 输出
//
// 返回：crash_exit开启且发生碰撞时返回CrashError
func (ctx *Context) update() error {
	dt := ctx.clock.DT
	segments := ctx.network.Segments()

	ctx.network.Update(dt)

	parallel.GoFor(segments, func(r *road.Road) {
		for _, v := range r.Vehicles() {
			v.UpdateAcc(dt)
		}
	})
	parallel.GoFor(segments, func(r *road.Road) {
		for _, v := range r.Vehicles() {
			v.CommitAcc()
		}
	})

	ctx.changeLanes()

	parallel.GoFor(segments, func(r *road.Road) {
		for _, v := range r.Vehicles() {
			v.Integrate(dt)
		}
	})
	for _, v := range ctx.network.LaneManager().Resort() {
		log.Warnf("step %d: vehicle %d overtook through its leader and was re-sorted", ctx.clock.InternalStep, v.ID())
	}

	ctx.boundary()
	ctx.sources.Step(ctx.clock.T, dt, ctx.vehicles)
	ctx.vehicles.Prepare()

	if err := ctx.checkConsistency(); err != nil {
		return err
	}
	ctx.record()
	return nil
}

// checkConsistency 碰撞检查
// 说明：crash_exit关闭时只记录日志，开启时返回第一个碰撞
func (ctx *Context) checkConsistency() error {
	crashes := ctx.network.LaneManager().CheckConsistency()
	if len(crashes) == 0 {
		return nil
	}
	ctx.crashes += len(crashes)
	for _, c := range crashes {
		log.Errorf("step %d: %v", ctx.clock.InternalStep, c)
	}
	if ctx.runtimeConfig.C.CrashExit {
		return crashes[0]
	}
	return nil
}

// record 调用输出器
// 说明：输出失败只记录日志，不影响仿真
func (ctx *Context) record() {
	interval := ctx.runtimeConfig.All.Output.Interval
	if (ctx.clock.InternalStep-ctx.clock.START_STEP)%interval != 0 {
		return
	}
	for _, r := range ctx.recorders {
		if err := r.Record(ctx.clock.T, ctx.clock.InternalStep, ctx.network); err != nil {
			log.Errorf("step %d: record failed: %v", ctx.clock.InternalStep, err)
		}
	}
}

// Step 执行一步仿真
func (ctx *Context) Step() error {
	ctx.mtx.Lock()
	defer ctx.mtx.Unlock()
	ctx.prepare()
	return ctx.update()
}

// Run 运行
// 功能：从起始步运行到结束步，或在Close后的当前步结束时退出
// 返回：crash_exit开启且发生碰撞时返回CrashError
func (ctx *Context) Run() error {
	defer ctx.stop()
	// 初始状态输出
	ctx.record()
	for !ctx.clock.Done() && !ctx.closed.Load() {
		if err := ctx.Step(); err != nil {
			log.Errorf("engine stopped at step %d: %v", ctx.clock.InternalStep, err)
			return err
		}
	}
	s := ctx.Stats()
	log.Infof("engine complete: step=%d created=%d outflow=%d crashes=%d lane_changes=%d",
		s.Step, s.Created, s.Outflow, s.Crashes, s.LaneChanges)
	return nil
}
