// Package detectors holds the checks that inspect a single construct in
// depth: regular-expression calls, format strings and literals that carry
// signatures of vendored code.
package detectors

// Emit reports one finding located at the construct being checked.
type Emit func(kind string, args ...any)
