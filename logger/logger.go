package logger

import (
	"io"
	"log"
	"os"
)

var (
	// Info 正常日志，输出到 stdout (显示为 [info])
	Info *log.Logger

	// Error 错误日志，输出到 stderr (显示为 [err])
	Error *log.Logger
)

func init() {
	Info = log.New(os.Stdout, "", log.LstdFlags)
	Error = log.New(os.Stderr, "", log.LstdFlags)
}

// SetOutput 重定向日志输出 (测试时捕获日志)
func SetOutput(info, errOut io.Writer) {
	Info.SetOutput(info)
	Error.SetOutput(errOut)
}

// Println 输出正常日志到 stdout
func Println(v ...interface{}) {
	Info.Println(v...)
}

// Printf 格式化输出正常日志到 stdout
func Printf(format string, v ...interface{}) {
	Info.Printf(format, v...)
}

// Errorf 格式化输出错误日志到 stderr
func Errorf(format string, v ...interface{}) {
	Error.Printf(format, v...)
}

// Fatalf 输出致命错误并退出程序
func Fatalf(format string, v ...interface{}) {
	Error.Fatalf(format, v...)
}
