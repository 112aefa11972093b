package common

import (
	"fmt"
	"log"

	"live-fixture-service/logger"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DefaultLogger 默认日志实现, 写入 logger 包的 Info/Error (错误级别走 stderr)
type DefaultLogger struct {
	prefix string
}

// NewLogger 创建日志器
func NewLogger(prefix string) Logger {
	return &DefaultLogger{prefix: prefix}
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.log(logger.Info, "DEBUG", msg, args...)
}

func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.log(logger.Info, "INFO", msg, args...)
}

func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.log(logger.Info, "WARN", msg, args...)
}

func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.log(logger.Error, "ERROR", msg, args...)
}

func (l *DefaultLogger) log(target *log.Logger, level string, msg string, args ...interface{}) {
	formatted := fmt.Sprintf(msg, args...)
	target.Printf("[%s] [%s] %s", l.prefix, level, formatted)
}

// NopLogger 丢弃所有日志 (测试用)
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
