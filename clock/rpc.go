package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ClockServiceName 时钟服务名
	ClockServiceName = "lanesim.v1.ClockService"
	// ClockServiceNowProcedure Now接口的路径
	ClockServiceNowProcedure = "/" + ClockServiceName + "/Now"
)

// Register 将ClockService注册到mux
// 参数：mux-HTTP路由，opts-处理器选项（例如读锁拦截器）
func (c *Clock) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	mux.Handle(ClockServiceNowProcedure, connect.NewUnaryHandler(ClockServiceNowProcedure, c.Now, opts...))
}

// Now 获取当前仿真时间
// 功能：RPC接口，返回当前仿真时间（秒）
func (c *Clock) Now(ctx context.Context, in *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.DoubleValue], error) {
	return connect.NewResponse(wrapperspb.Double(c.T)), nil
}
