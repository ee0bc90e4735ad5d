package clock_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/clock"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestClock(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 10, Total: 2, Interval: 0.5})
	assert.Equal(t, 5.0, c.T)
	assert.False(t, c.Done())
	c.Tick()
	c.Tick()
	assert.True(t, c.Done())
	assert.Equal(t, 6.0, c.T)

	c = clock.New(config.ControlStep{Start: 7322, Interval: 0.5})
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 1, m)
	assert.InDelta(t, 1.0, s, 1e-9)
	assert.Equal(t, "01:01:01", c.String())
}

func TestNowRPC(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 4, Total: 10, Interval: 0.25})
	mux := http.NewServeMux()
	c.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := connect.NewClient[emptypb.Empty, wrapperspb.DoubleValue](srv.Client(), srv.URL+clock.ClockServiceNowProcedure)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Msg.GetValue())
}
