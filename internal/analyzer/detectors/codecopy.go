package detectors

import (
	actx "pydiatra/internal/context"
)

// CodeCopyDetector looks for well-known third-party code pasted into
// string literals. It reports at most one copy per source unit.
type CodeCopyDetector struct{}

func NewCodeCopyDetector() *CodeCopyDetector {
	return &CodeCopyDetector{}
}

func (d *CodeCopyDetector) Name() string {
	return "Embedded Code Copy Detector"
}

// Check matches the text of a literal against the signatures.
func (d *CodeCopyDetector) Check(ac *actx.AnalysisContext, text string, emit Emit) {
	if ac.CodeCopyFound || ac.Data == nil {
		return
	}
	name, ok := ac.Data.MatchCodeCopy(text)
	if !ok {
		return
	}
	emit("embedded-code-copy", name)
	ac.CodeCopyFound = true
}
