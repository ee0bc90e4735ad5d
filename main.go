package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"github.com/tsinghua-fib-lab/lanesim/output"
	"github.com/tsinghua-fib-lab/lanesim/task"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
)

var (
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// RPC监听地址，非空时覆盖配置文件中的rpc.listen
	listen = flag.String("listen", "", "rpc listening address (overrides rpc.listen), e.g. :51102")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "lanesim")
)

// loadConfig 从文件或Base64数据读取配置
func loadConfig() config.Config {
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Fatalf("config data load err: %v", err)
		}
	} else {
		log.Fatal("config file or config data must be specified")
	}
	c, err := config.Parse(file)
	if err != nil {
		log.Fatal(err)
	}
	if *listen != "" {
		c.RPC.Listen = *listen
	}
	return c
}

// addRecorders 按输出配置创建输出器
func addRecorders(ctx *task.Context, c config.Output) error {
	if len(c.Detectors) > 0 || c.GeoJSON {
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return err
		}
	}
	if len(c.Detectors) > 0 {
		f, err := os.Create(filepath.Join(c.Dir, "detectors.csv"))
		if err != nil {
			return err
		}
		d, err := output.NewDetectorRecorder(f, ctx.Network(), c.Detectors)
		if err != nil {
			f.Close()
			return err
		}
		ctx.AddRecorder(d)
	}
	if c.GeoJSON {
		g, err := output.NewGeoJSONRecorder(filepath.Join(c.Dir, "geojson"), ctx.Network())
		if err != nil {
			return err
		}
		ctx.AddRecorder(g)
	}
	if c.Mongo != nil {
		m, err := output.NewMongoRecorder(*c.Mongo)
		if err != nil {
			return err
		}
		ctx.AddRecorder(m)
	}
	return nil
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	c := loadConfig()
	log.Infof("%+v", c)

	in, err := input.Load(c.Input.File, c.Control.Step.Interval, c.Control.Seed)
	if err != nil {
		log.Fatalf("input load err: %v", err)
	}
	ctx, err := task.NewContext(c, in)
	if err != nil {
		log.Fatalf("init err: %v", err)
	}
	if err := addRecorders(ctx, ctx.RuntimeConfig().All.Output); err != nil {
		log.Fatalf("output init err: %v", err)
	}
	if c.RPC.Listen != "" {
		if err := ctx.Serve(c.RPC.Listen); err != nil {
			log.Fatalf("rpc serve err: %v", err)
		}
		log.Infof("rpc listening on %s", c.RPC.Listen)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		ctx.Close()
	}()

	if err := ctx.Run(); err != nil {
		os.Exit(1)
	}
}
