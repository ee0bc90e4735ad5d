package entity

import "fmt"

// ConfigError 配置错误
// 功能：表示模型参数缺失、不一致或车道编号约定不合法等在构建期发现的致命错误
type ConfigError struct {
	Model  string // 出错的模型或对象名
	Param  string // 出错的参数名，可以为空
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("config error in %s: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("config error in %s.%s: %s", e.Model, e.Param, e.Reason)
}

// NewConfigError 构造配置错误
func NewConfigError(model, param, format string, args ...any) error {
	return &ConfigError{Model: model, Param: param, Reason: fmt.Sprintf(format, args...)}
}

// TopologyError 路网拓扑错误
// 功能：表示引用的路段或车道不存在、连接重复、无法到达终点等路网构建期错误
type TopologyError struct {
	Segment int32 // 路段ID，未知时为-1
	Lane    int32 // 车道编号，未知时为-1
	Reason  string
}

func (e *TopologyError) Error() string {
	switch {
	case e.Segment < 0:
		return fmt.Sprintf("topology error: %s", e.Reason)
	case e.Lane < 0:
		return fmt.Sprintf("topology error at segment %d: %s", e.Segment, e.Reason)
	default:
		return fmt.Sprintf("topology error at segment %d lane %d: %s", e.Segment, e.Lane, e.Reason)
	}
}

// NewTopologyError 构造路网拓扑错误
func NewTopologyError(segment, lane int32, format string, args ...any) error {
	return &TopologyError{Segment: segment, Lane: lane, Reason: fmt.Sprintf(format, args...)}
}

// CrashError 碰撞（净间距为负）
// 功能：一致性检查发现同一车道相邻两车重叠时的报告
type CrashError struct {
	Lane     string  // 车道标识
	Front    int32   // 前车ID
	Back     int32   // 后车ID
	FrontPos float64 // 前车车尾位置
	BackPos  float64 // 后车车尾位置
	Gap      float64 // 净间距（负数）
}

func (e *CrashError) Error() string {
	return fmt.Sprintf(
		"crash in lane %s: vehicle %d (pos=%.2f) overlaps vehicle %d (pos=%.2f), net gap %.2f",
		e.Lane, e.Back, e.BackPos, e.Front, e.FrontPos, e.Gap,
	)
}
