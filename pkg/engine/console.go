package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

var consoleLevels = []string{"log", "info", "warn", "error", "debug"}

// installConsole binds a console object whose methods join their arguments
// with spaces and hand the line to write.
func installConsole(vm *goja.Runtime, write func(level, line string)) {
	console := vm.NewObject()
	for _, level := range consoleLevels {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = formatConsoleArg(arg)
			}
			write(level, strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	_ = vm.Set("console", console)
}

func formatConsoleArg(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	if data, err := json.Marshal(obj.Export()); err == nil {
		return string(data)
	}
	return v.String()
}

func (s *GojaSandbox) writeConsole(level, line string) {
	if s.console == nil {
		s.logger.Info("console", "level", level, "message", line)
		return
	}
	if level == "warn" || level == "error" {
		line = strings.ToUpper(level) + " " + line
	}
	fmt.Fprintln(s.console, line)
}
