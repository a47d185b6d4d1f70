package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type logConfig struct {
	Dir       string `yaml:"dir"`
	Level     string `yaml:"level"`
	MaxSize   int    `yaml:"max_size"` // MB
	MaxBackup int    `yaml:"max_backups"`
	MaxAge    int    `yaml:"max_age"` // days
}

type benchConfig struct {
	PoolPath       string    `yaml:"pool_path"`
	PoolSize       int64     `yaml:"pool_size"`
	MetricsAddr    string    `yaml:"metrics_addr"`
	Seed           uint64    `yaml:"seed"`
	WriteLatencyNS int64     `yaml:"write_latency_ns"`
	Log            logConfig `yaml:"log"`
}

func defaultConfig() benchConfig {
	return benchConfig{
		PoolPath: "/mnt/pmem0/fastfair.data",
		PoolSize: 10 << 30,
		Seed:     0x12345,
	}
}

func loadConfig(path string) (benchConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func setupLogger(cfg logConfig) (*zap.Logger, error) {
	if cfg.Dir == "" {
		return zap.NewDevelopment()
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "pmbench.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackup,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
		LocalTime:  true,
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(logFile),
		level,
	)
	return zap.New(core, zap.AddCaller()), nil
}
