package config

import (
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"gopkg.in/yaml.v2"
)

const defaultOutputDir = "output"

// RuntimeConfig 运行时配置
// 功能：存储校验后的仿真运行配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// Parse 解析YAML配置
// 说明：使用UnmarshalStrict，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, errors.Wrap(err, "config file load err")
	}
	return c, nil
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象并校验控制参数
// 参数：config-原始配置对象
// 返回：运行时配置，步长非正、总步数为负时返回ConfigError
// 算法说明：
// 1. 校验步长与总步数
// 2. 设置默认值：输出间隔默认为1步，输出目录默认为output/
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if !(config.Control.Step.Interval > 0) {
		return nil, entity.NewConfigError("control", "step.interval", "must be positive, got %v", config.Control.Step.Interval)
	}
	if config.Control.Step.Total < 0 {
		return nil, entity.NewConfigError("control", "step.total", "must be non-negative, got %v", config.Control.Step.Total)
	}
	if config.Output.Interval <= 0 {
		config.Output.Interval = 1
	}
	if config.Output.Dir == "" {
		config.Output.Dir = defaultOutputDir
	}
	if m := config.Output.Mongo; m != nil && (m.URI == "" || m.DB == "" || m.Col == "") {
		return nil, entity.NewConfigError("output", "mongo", "uri, db and col are all required")
	}
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control

	return rc, nil
}
