// Package sre parses and checks regular expressions with the semantics of
// Python's re module. It produces the same structural representation as
// the interpreter's own parser so that callers can reason about the
// pattern content (character classes, anchors, categories) and about the
// flags that end up in effect.
package sre

import "strings"

// Opcode names an operation or an operand constant of the structural
// representation.
type Opcode int

const (
	Failure Opcode = iota
	Success
	Any
	Assert
	AssertNot
	At
	Branch
	Category
	GroupRef
	GroupRefExists
	In
	Literal
	NotLiteral
	Negate
	Range
	Subpattern
	MinRepeat
	MaxRepeat
	PossessiveRepeat
	AtomicGroup

	AtBeginning
	AtBeginningLine
	AtBeginningString
	AtBoundary
	AtNonBoundary
	AtEnd
	AtEndLine
	AtEndString

	CategoryDigit
	CategoryNotDigit
	CategorySpace
	CategoryNotSpace
	CategoryWord
	CategoryNotWord
	CategoryLinebreak
	CategoryNotLinebreak
)

var opcodeNames = [...]string{
	Failure:          "FAILURE",
	Success:          "SUCCESS",
	Any:              "ANY",
	Assert:           "ASSERT",
	AssertNot:        "ASSERT_NOT",
	At:               "AT",
	Branch:           "BRANCH",
	Category:         "CATEGORY",
	GroupRef:         "GROUPREF",
	GroupRefExists:   "GROUPREF_EXISTS",
	In:               "IN",
	Literal:          "LITERAL",
	NotLiteral:       "NOT_LITERAL",
	Negate:           "NEGATE",
	Range:            "RANGE",
	Subpattern:       "SUBPATTERN",
	MinRepeat:        "MIN_REPEAT",
	MaxRepeat:        "MAX_REPEAT",
	PossessiveRepeat: "POSSESSIVE_REPEAT",
	AtomicGroup:      "ATOMIC_GROUP",

	AtBeginning:       "AT_BEGINNING",
	AtBeginningLine:   "AT_BEGINNING_LINE",
	AtBeginningString: "AT_BEGINNING_STRING",
	AtBoundary:        "AT_BOUNDARY",
	AtNonBoundary:     "AT_NON_BOUNDARY",
	AtEnd:             "AT_END",
	AtEndLine:         "AT_END_LINE",
	AtEndString:       "AT_END_STRING",

	CategoryDigit:        "CATEGORY_DIGIT",
	CategoryNotDigit:     "CATEGORY_NOT_DIGIT",
	CategorySpace:        "CATEGORY_SPACE",
	CategoryNotSpace:     "CATEGORY_NOT_SPACE",
	CategoryWord:         "CATEGORY_WORD",
	CategoryNotWord:      "CATEGORY_NOT_WORD",
	CategoryLinebreak:    "CATEGORY_LINEBREAK",
	CategoryNotLinebreak: "CATEGORY_NOT_LINEBREAK",
}

// Name returns the upper-case constant name, e.g. "MAX_REPEAT".
func (o Opcode) Name() string {
	if o < 0 || int(o) >= len(opcodeNames) {
		return "UNKNOWN"
	}
	return opcodeNames[o]
}

// String returns the lower-case name, e.g. "at_boundary".
func (o Opcode) String() string { return strings.ToLower(o.Name()) }

func (o Opcode) isRepeat() bool {
	return o == MinRepeat || o == MaxRepeat || o == PossessiveRepeat
}

func (o Opcode) isUnit() bool {
	switch o {
	case Any, Range, In, Literal, NotLiteral, Category:
		return true
	}
	return false
}

// Flag values of the re module.
const (
	FlagTemplate   = 1
	FlagIgnoreCase = 2
	FlagLocale     = 4
	FlagMultiline  = 8
	FlagDotAll     = 16
	FlagUnicode    = 32
	FlagVerbose    = 64
	FlagDebug      = 128
	FlagASCII      = 256

	typeFlags   = FlagASCII | FlagLocale | FlagUnicode
	globalFlags = FlagDebug | FlagTemplate
)

// ModuleConstants are the integer attributes of the re module that hold
// flag values.
var ModuleConstants = map[string]int{
	"NOFLAG":     0,
	"T":          FlagTemplate,
	"TEMPLATE":   FlagTemplate,
	"I":          FlagIgnoreCase,
	"IGNORECASE": FlagIgnoreCase,
	"L":          FlagLocale,
	"LOCALE":     FlagLocale,
	"M":          FlagMultiline,
	"MULTILINE":  FlagMultiline,
	"S":          FlagDotAll,
	"DOTALL":     FlagDotAll,
	"U":          FlagUnicode,
	"UNICODE":    FlagUnicode,
	"X":          FlagVerbose,
	"VERBOSE":    FlagVerbose,
	"DEBUG":      FlagDebug,
	"A":          FlagASCII,
	"ASCII":      FlagASCII,
}

// inline flag letters
var inlineFlags = map[rune]int{
	'i': FlagIgnoreCase,
	'L': FlagLocale,
	'm': FlagMultiline,
	's': FlagDotAll,
	'x': FlagVerbose,
	'a': FlagASCII,
	't': FlagTemplate,
	'u': FlagUnicode,
}

const (
	// MaxRepeatCount stands for an unbounded repeat.
	MaxRepeatCount = 1<<32 - 1
	maxGroups      = 1<<30 - 1
)

var escapes = map[string]rune{
	`\a`: '\a',
	`\b`: '\b',
	`\f`: '\f',
	`\n`: '\n',
	`\r`: '\r',
	`\t`: '\t',
	`\v`: '\v',
	`\\`: '\\',
}

type code struct {
	op  Opcode
	arg any
}

var categories = map[string]code{
	`\A`: {At, AtBeginningString},
	`\b`: {At, AtBoundary},
	`\B`: {At, AtNonBoundary},
	`\d`: {In, []any{[]any{Category, CategoryDigit}}},
	`\D`: {In, []any{[]any{Category, CategoryNotDigit}}},
	`\s`: {In, []any{[]any{Category, CategorySpace}}},
	`\S`: {In, []any{[]any{Category, CategoryNotSpace}}},
	`\w`: {In, []any{[]any{Category, CategoryWord}}},
	`\W`: {In, []any{[]any{Category, CategoryNotWord}}},
	`\Z`: {At, AtEndString},
}

const (
	specialChars = `.\[{()*+?^$|`
	repeatChars  = "*+?{"
	digits       = "0123456789"
	octDigits    = "01234567"
	hexDigits    = "0123456789abcdefABCDEF"
	whitespace   = " \t\n\r\v\f"
)

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
