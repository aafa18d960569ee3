package apmagent

import (
	"path/filepath"
	"testing"

	goErrors "github.com/go-errors/errors"
	pingcapErrors "github.com/pingcap/errors"
	pkgErrors "github.com/pkg/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func redPkgErrorsRanger() error {
	return bluePkgErrorsRanger()
}

func bluePkgErrorsRanger() error {
	return pkgErrors.New("this is bad from pkgErrors")
}

func redPingcapErrorsRanger() error {
	return bluePingcapErrorsRanger()
}

func bluePingcapErrorsRanger() error {
	return pingcapErrors.New("this is bad from pingcapErrors")
}

func redGoErrorsRanger() error {
	return blueGoErrorsRanger()
}

func blueGoErrorsRanger() error {
	return goErrors.New("this is bad from goErrors")
}

func TestExtractStacktrace(t *testing.T) {
	tests := map[string]struct {
		f    func() error
		want []Frame
	}{
		"pkg/errors": {redPkgErrorsRanger, []Frame{
			{Function: "redPkgErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 16, InApp: true},
			{Function: "bluePkgErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 20, InApp: true},
		}},
		"pingcap/errors": {redPingcapErrorsRanger, []Frame{
			{Function: "redPingcapErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 24, InApp: true},
			{Function: "bluePingcapErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 28, InApp: true},
		}},
		"go-errors/errors": {redGoErrorsRanger, []Frame{
			{Function: "redGoErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 32, InApp: true},
			{Function: "blueGoErrorsRanger", Module: "github.com/apmhq/agent-go", Filename: "stacktrace_external_test.go", Lineno: 36, InApp: true},
		}},
	}
	classify := FrameClassifier{}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			err := tt.f()
			if err == nil {
				t.Fatal("got nil error")
			}
			got := extractStacktrace(err, classify)
			compareFrames(t, got, tt.want)
		})
	}
}

func compareFrames(t *testing.T, got, want []Frame) {
	t.Helper()
	diff := cmp.Diff(want, got,
		cmpopts.IgnoreFields(Frame{}, "AbsPath"),
	)
	if diff != "" {
		t.Fatalf("stack trace mismatch (-want +got):\n%s", diff)
	}
	for _, frame := range got {
		if !filepath.IsAbs(frame.AbsPath) {
			t.Errorf("Frame{Function: %q}.AbsPath = %q, want absolute path", frame.Function, frame.AbsPath)
		}
	}
}
