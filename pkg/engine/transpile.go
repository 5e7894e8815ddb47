package engine

import (
	"github.com/evanw/esbuild/pkg/api"
)

// BundleFileName is the virtual file name reported in diagnostics.
const BundleFileName = "bundle.ts"

// Transpile turns TypeScript bundle text into plain JavaScript. Only the
// first error is reported.
func Transpile(code string) (string, error) {
	result := api.Transform(code, api.TransformOptions{
		Loader:     api.LoaderTS,
		Target:     api.ES2017,
		Sourcefile: BundleFileName,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		cerr := &CompileError{Message: msg.Text}
		if msg.Location != nil {
			cerr.File = msg.Location.File
			cerr.Line = msg.Location.Line
			cerr.Column = msg.Location.Column + 1
		}
		return "", cerr
	}

	return string(result.Code), nil
}
