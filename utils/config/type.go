package config

// Input 指定模拟器输入数据的配置项
// 功能：定义场景文件的来源
type Input struct {
	File string `yaml:"file"` // 场景文件路径（YAML）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step      ControlStep `yaml:"step"`
	Seed      uint64      `yaml:"seed"`                 // 运行随机种子，车辆i使用seed+i
	CrashExit bool        `yaml:"crash_exit,omitempty"` // 发生碰撞时终止仿真（否则记录日志后继续）
	Parallel  int         `yaml:"parallel,omitempty"`   // 并行协程数上限，<=0表示CPU核数
}

// MongoOutput MongoDB轨迹输出配置
type MongoOutput struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col"`
}

// DetectorOutput 断面检测器配置
type DetectorOutput struct {
	Road     string  `yaml:"road"`     // 路段（ID或用户ID）
	Position float64 `yaml:"position"` // 断面位置
}

// Output 输出配置
// 说明：各类输出均为可选项，未配置时不启用
type Output struct {
	Dir       string           `yaml:"dir,omitempty"`       // 文件输出目录
	Interval  int32            `yaml:"interval,omitempty"`  // 输出间隔步数，<=0时为1
	Detectors []DetectorOutput `yaml:"detectors,omitempty"` // CSV断面检测器
	GeoJSON   bool             `yaml:"geojson,omitempty"`   // GeoJSON快照
	Mongo     *MongoOutput     `yaml:"mongo,omitempty"`     // MongoDB轨迹
}

// RPC 服务配置
type RPC struct {
	Listen string `yaml:"listen,omitempty"` // 监听地址，为空时不启动
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：包含输入、控制、输出等所有配置项
type Config struct {
	Input   Input   `yaml:"input"`   // 输入
	Control Control `yaml:"control"` // 模拟过程控制
	Output  Output  `yaml:"output"`  // 输出
	RPC     RPC     `yaml:"rpc"`     // 服务
}
