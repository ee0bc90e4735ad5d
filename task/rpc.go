package task

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// NetworkServiceName 路网状态服务名
	NetworkServiceName = "lanesim.v1.NetworkService"
	// NetworkServiceStatusProcedure 运行统计接口的路径
	NetworkServiceStatusProcedure = "/" + NetworkServiceName + "/Status"
	// NetworkServiceGetVehicleProcedure 单车查询接口的路径
	NetworkServiceGetVehicleProcedure = "/" + NetworkServiceName + "/GetVehicle"
)

// readLock 读锁拦截器，保证RPC读到的是完整的一步之后的状态
func (ctx *Context) readLock() connect.Option {
	return connect.WithInterceptors(connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(c context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			ctx.mtx.RLock()
			defer ctx.mtx.RUnlock()
			return next(c, req)
		}
	}))
}

// Handler RPC服务的HTTP处理器
func (ctx *Context) Handler() http.Handler {
	mux := http.NewServeMux()
	lock := ctx.readLock()
	ctx.clock.Register(mux, lock)
	mux.Handle(NetworkServiceStatusProcedure, connect.NewUnaryHandler(NetworkServiceStatusProcedure, ctx.Status, lock))
	mux.Handle(NetworkServiceGetVehicleProcedure, connect.NewUnaryHandler(NetworkServiceGetVehicleProcedure, ctx.GetVehicle, lock))
	return mux
}

// Status 获取运行统计
func (ctx *Context) Status(c context.Context, in *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	s := ctx.Stats()
	res, err := structpb.NewStruct(map[string]any{
		"step":            s.Step,
		"t":               s.T,
		"vehicles":        s.Vehicles,
		"created":         s.Created,
		"outflow":         s.Outflow,
		"waiting":         s.Waiting,
		"mean_speed":      s.MeanSpeed,
		"crashes":         s.Crashes,
		"lane_changes":    s.LaneChanges,
		"dropped_changes": s.DroppedChanges,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// GetVehicle 查询单辆车的状态
// 返回：ID为负时返回InvalidArgument，车辆不存在时返回NotFound
func (ctx *Context) GetVehicle(c context.Context, in *connect.Request[wrapperspb.Int32Value]) (*connect.Response[structpb.Struct], error) {
	id := in.Msg.GetValue()
	if id < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid vehicle id %d", id))
	}
	v, err := ctx.vehicles.Get(id)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	l := v.Lane()
	res, err := structpb.NewStruct(map[string]any{
		"id":       v.ID(),
		"label":    v.Label(),
		"road":     l.Road().ID(),
		"lane":     l.Index(),
		"position": v.Position(),
		"speed":    v.Speed(),
		"acc":      v.Acc(),
		"distance": v.Distance(),
		"decision": v.LastDecision().Decision.String(),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}
