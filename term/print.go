package term

import (
	"fmt"

	"github.com/pterm/pterm"
)

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var lvl = LevelInfo

func SetLevel(level Level) {
	lvl = level
}

func GetLevel() Level {
	return lvl
}

func printLine(level Level, color pterm.Color, a ...interface{}) {
	if lvl > level {
		return
	}
	color.Println(a...)
}

func printLinef(level Level, color pterm.Color, format string, a ...interface{}) {
	if lvl > level {
		return
	}
	color.Printfln(format, a...)
}

func Debug(a ...interface{}) {
	printLine(LevelDebug, pterm.FgLightCyan, a...)
}

func Debugf(format string, a ...interface{}) {
	printLinef(LevelDebug, pterm.FgLightCyan, format, a...)
}

func Info(a ...interface{}) {
	printLine(LevelInfo, pterm.FgLightGreen, a...)
}

func Infof(format string, a ...interface{}) {
	printLinef(LevelInfo, pterm.FgLightGreen, format, a...)
}

func Warn(a ...interface{}) {
	printLine(LevelWarn, pterm.FgYellow, a...)
}

func Warnf(format string, a ...interface{}) {
	printLinef(LevelWarn, pterm.FgYellow, format, a...)
}

// Error messages are always displayed
func Error(a ...interface{}) {
	printLine(LevelError, pterm.FgLightRed, a...)
}

func Errorf(format string, a ...interface{}) {
	printLinef(LevelError, pterm.FgLightRed, format, a...)
}

// Logger sends the session transcript to the debug output
type Logger struct{}

func (l Logger) Print(a ...any) {
	Debug(a...)
}

func (l Logger) Println(a ...any) {
	Debug(a...)
}

func (l Logger) Printf(format string, a ...any) {
	Debug(fmt.Sprintf(format, a...))
}
