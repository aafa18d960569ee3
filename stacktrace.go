package apmagent

import (
	"go/build"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

const unknownFrameValue = "unknown"

// Frame is one entry of a captured stack trace.
type Frame struct {
	Function    string
	Module      string
	Filename    string
	AbsPath     string
	Lineno      int
	Colno       int
	PreContext  []string
	ContextLine string
	PostContext []string
	InApp       bool
	Vars        map[string]interface{}
}

// FrameClassifier decides whether a frame belongs to application code, as
// opposed to library/vendor/stdlib code, using configurable include/exclude
// path patterns with a GOROOT/vendor check as the default.
type FrameClassifier struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
}

func (c FrameClassifier) InApp(absPath, module string) bool {
	for _, pat := range c.Exclude {
		if pat.MatchString(absPath) {
			return false
		}
	}
	if len(c.Include) > 0 {
		for _, pat := range c.Include {
			if pat.MatchString(absPath) {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(absPath, build.Default.GOROOT) ||
		strings.Contains(module, "vendor") ||
		strings.Contains(module, "third_party") {
		return false
	}
	return true
}

// captureFrames returns the stack frames of the calling goroutine, skipping
// skip frames above its caller (runtime.Callers and this function are always
// skipped in addition) and every frame internal to this package.
func captureFrames(skip int, classify FrameClassifier) []Frame {
	pc := make([]uintptr, 100)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}
	return framesFromPCs(pc[:n], classify)
}

func framesFromPCs(pc []uintptr, classify FrameClassifier) []Frame {
	frames := runtime.CallersFrames(pc)

	var out []Frame
	for {
		frame, more := frames.Next()

		if strings.HasPrefix(frame.Function, "github.com/apmhq/agent-go.") {
			if !more {
				break
			}
			continue
		}
		if strings.HasPrefix(frame.Function, "runtime.") {
			break
		}

		out = append(out, newFrame(frame, classify))

		if !more {
			break
		}
	}

	for i := len(out)/2 - 1; i >= 0; i-- {
		opp := len(out) - 1 - i
		out[i], out[opp] = out[opp], out[i]
	}
	return out
}

func newFrame(f runtime.Frame, classify FrameClassifier) Frame {
	abspath := f.File
	filename := f.File
	function := f.Function
	var module string

	if filename != "" {
		filename = filepath.Base(filename)
	} else {
		filename = unknownFrameValue
	}
	if abspath == "" {
		abspath = unknownFrameValue
	}
	if function != "" {
		module, function = deconstructFunctionName(function)
	}

	frame := Frame{
		AbsPath:  abspath,
		Filename: filename,
		Lineno:   f.Line,
		Module:   module,
		Function: function,
	}
	frame.InApp = classify.InApp(frame.AbsPath, frame.Module)
	return frame
}

// deconstructFunctionName splits a qualified name at its last '.', so
// "pkg/path.Receiver.Method" becomes ("pkg/path.Receiver", "Method").
func deconstructFunctionName(name string) (module, function string) {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		module = name[:idx]
		function = name[idx+1:]
	}
	function = strings.Replace(function, "·", ".", -1)
	return module, function
}

// extractStacktrace recovers frames from a wrapped error using reflection,
// without taking a hard dependency on any particular errors package. It
// recognizes github.com/pkg/errors (StackTrace), github.com/go-errors/errors
// (StackFrames), and github.com/pingcap/errors (GetStackTracer().StackTrace).
func extractStacktrace(err error, classify FrameClassifier) []Frame {
	method := extractReflectedStacktraceMethod(err)
	if !method.IsValid() {
		return nil
	}
	pcs := extractPCs(method)
	if len(pcs) == 0 {
		return nil
	}
	return framesFromPCs(pcs, classify)
}

func extractReflectedStacktraceMethod(err error) reflect.Value {
	var method reflect.Value

	v := reflect.ValueOf(err)
	methodGetStackTracer := v.MethodByName("GetStackTracer")
	methodStackTrace := v.MethodByName("StackTrace")
	methodStackFrames := v.MethodByName("StackFrames")

	if methodGetStackTracer.IsValid() {
		results := methodGetStackTracer.Call(nil)
		if len(results) == 1 {
			st := reflect.ValueOf(results[0].Interface()).MethodByName("StackTrace")
			if st.IsValid() {
				method = st
			}
		}
	}
	if methodStackTrace.IsValid() {
		method = methodStackTrace
	}
	if methodStackFrames.IsValid() {
		method = methodStackFrames
	}
	return method
}

func extractPCs(method reflect.Value) []uintptr {
	var pcs []uintptr

	results := method.Call(nil)
	if len(results) != 1 {
		return nil
	}
	stacktrace := results[0]
	if stacktrace.Kind() != reflect.Slice {
		return nil
	}

	for i := 0; i < stacktrace.Len(); i++ {
		pc := stacktrace.Index(i)
		if pc.Kind() == reflect.Uintptr {
			pcs = append(pcs, uintptr(pc.Uint()))
			continue
		}
		if pc.Kind() == reflect.Struct {
			field := pc.FieldByName("ProgramCounter")
			if field.IsValid() && field.Kind() == reflect.Uintptr {
				pcs = append(pcs, uintptr(field.Uint()))
			}
		}
	}
	return pcs
}
