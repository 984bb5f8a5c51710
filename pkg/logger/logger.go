package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	zlogger *zap.Logger
	level   zap.AtomicLevel
)

type options struct {
	logLevel     string
	maxAgeDays   int
	enableStdout bool // 是否同时输出到终端
}

type Option func(*options)

func WithLogLevel(lv string) Option {
	return func(o *options) { o.logLevel = lv }
}

func WithMaxAge(days int) Option {
	return func(o *options) { o.maxAgeDays = days }
}

func WithStdout(enable bool) Option {
	return func(o *options) { o.enableStdout = enable }
}

func init() {
	Init("./logs") // 默认路径
}

func Init(logDir string, opts ...Option) {
	conf := &options{
		logLevel:     "info",
		maxAgeDays:   7,
		enableStdout: true,
	}
	for _, opt := range opts {
		opt(conf)
	}
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		panic(fmt.Sprintf("failed to create log directory: %v", err))
	}

	writer, err := rotatelogs.New(
		filepath.Join(logDir, "resilient-%Y-%m-%d.log"),
		rotatelogs.WithLinkName(filepath.Join(logDir, "latest.log")),
		rotatelogs.WithMaxAge(time.Duration(conf.maxAgeDays)*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create rotatelogs: %v", err))
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeCaller: shortCallerEncoder,
	}

	level = zap.NewAtomicLevelAt(parseLevel(conf.logLevel))
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(writer), level),
	}
	if conf.enableStdout {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level))
	}

	zlogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// SetLevel 运行时调整日志级别
func SetLevel(lv string) {
	level.SetLevel(parseLevel(lv))
}

// Sync 进程退出前刷新缓冲
func Sync() {
	_ = zlogger.Sync()
}

// shortCallerEncoder 显示 caller 的上一级目录 + 文件名 + 行号
func shortCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	parts := strings.Split(caller.File, "/")
	n := len(parts)
	if n >= 2 {
		enc.AppendString(fmt.Sprintf("%s/%s:%d", parts[n-2], parts[n-1], caller.Line))
	} else {
		enc.AppendString(fmt.Sprintf("%s:%d", caller.File, caller.Line))
	}
}

func parseLevel(lv string) zapcore.Level {
	switch strings.ToLower(lv) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debugf(format string, args ...interface{}) {
	zlogger.Sugar().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	zlogger.Sugar().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	zlogger.Sugar().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	zlogger.Sugar().Errorf(format, args...)
}

func Debugw(msg string, kvs ...interface{}) {
	zlogger.Sugar().Debugw(msg, kvs...)
}

func Infow(msg string, kvs ...interface{}) {
	zlogger.Sugar().Infow(msg, kvs...)
}

func Warnw(msg string, kvs ...interface{}) {
	zlogger.Sugar().Warnw(msg, kvs...)
}

func Errorw(msg string, kvs ...interface{}) {
	zlogger.Sugar().Errorw(msg, kvs...)
}
