package context

import (
	"pydiatra/internal/refdata"
)

// AnalysisContext carries the per-unit state that detectors share while
// one source unit is traversed. It is created fresh for every traversal
// and never shared between goroutines.
type AnalysisContext struct {
	Path string
	Data *refdata.Data

	// ReNames holds the local names bound to the re module.
	ReNames map[string]bool

	// CodeCopyFound is set once an embedded code copy has been reported.
	CodeCopyFound bool
}

// NewAnalysisContext returns the state for a fresh traversal of path.
// The name "re" is always bound, so calls in units that import the module
// indirectly are still recognised.
func NewAnalysisContext(path string, data *refdata.Data) *AnalysisContext {
	return &AnalysisContext{
		Path:    path,
		Data:    data,
		ReNames: map[string]bool{"re": true},
	}
}

// BindImport records "import re" and "import re as alias".
func (c *AnalysisContext) BindImport(module, asName string) {
	if module != "re" {
		return
	}
	if asName == "" {
		asName = module
	}
	c.ReNames[asName] = true
}
