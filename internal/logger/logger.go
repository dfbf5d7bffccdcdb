package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一的结构化日志接口，参数为交替的键值对
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志初始化选项
type Options struct {
	Level    string   // debug/info/warn/error
	Writers  []string // console/file
	FilePath string   // file writer 的目标路径
}

type zlogger struct {
	l zerolog.Logger
}

// New 按选项创建 zerolog 日志实例，支持控制台与滚动文件双写
func New(opts Options) Logger {
	var ws []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			path := opts.FilePath
			if path == "" {
				path = "xhrbridge.log"
			}
			ws = append(ws, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    32, // MB
				MaxBackups: 4,
			})
		}
	}
	if len(ws) == 0 {
		ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(ws...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()
	return &zlogger{l: zl}
}

// NewNop 创建丢弃全部输出的日志实例，用于测试
func NewNop() Logger {
	return &zlogger{l: zerolog.Nop()}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zlogger) Debug(msg string, kv ...any) { fields(z.l.Debug(), kv).Msg(msg) }
func (z *zlogger) Info(msg string, kv ...any)  { fields(z.l.Info(), kv).Msg(msg) }
func (z *zlogger) Warn(msg string, kv ...any)  { fields(z.l.Warn(), kv).Msg(msg) }
func (z *zlogger) Error(msg string, kv ...any) { fields(z.l.Error(), kv).Msg(msg) }

func (z *zlogger) Err(err error, msg string, kv ...any) {
	fields(z.l.Error().Err(err), kv).Msg(msg)
}

// With 返回携带固定键值对的派生日志实例
func (z *zlogger) With(kv ...any) Logger {
	c := z.l.With()
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		c = c.Interface(k, kv[i+1])
	}
	return &zlogger{l: c.Logger()}
}

func fields(ev *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(k, v)
		case error:
			ev = ev.AnErr(k, v)
		case int:
			ev = ev.Int(k, v)
		case int64:
			ev = ev.Int64(k, v)
		case bool:
			ev = ev.Bool(k, v)
		default:
			ev = ev.Interface(k, v)
		}
	}
	return ev
}
