package models

import (
	"fmt"
	"strings"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity accepts the names produced by String, in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(s) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Finding is a public tag annotated with catalogue information.
type Finding struct {
	Tag
	Severity  Severity `json:"severity"`
	Certainty string   `json:"certainty,omitempty"`
}

// FileError records a source unit that could not be analysed.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type AnalysisResult struct {
	Files            []string       `json:"files_analyzed"`
	TotalTags        int            `json:"total_tags"`
	TagsBySeverity   map[string]int `json:"tags_by_severity"`
	Findings         []Finding      `json:"findings"`
	Errors           []FileError    `json:"errors,omitempty"`
	QualityScore     int            `json:"quality_score"` // 0-100 scale
	AnalysisDuration string         `json:"analysis_duration"`
}

func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		Files:          make([]string, 0),
		Findings:       make([]Finding, 0),
		TagsBySeverity: make(map[string]int),
	}
}

// AddFinding records a public tag. Private tags are ignored.
func (ar *AnalysisResult) AddFinding(f Finding) {
	if f.Private() {
		return
	}
	ar.Findings = append(ar.Findings, f)
	ar.TotalTags++
	ar.TagsBySeverity[f.Severity.String()]++
}

func (ar *AnalysisResult) AddError(path string, err error) {
	ar.Errors = append(ar.Errors, FileError{Path: path, Message: err.Error()})
}

func (ar *AnalysisResult) CalculateScore() {
	if ar.TotalTags == 0 {
		ar.QualityScore = 100
		return
	}

	penalty := 0
	for _, f := range ar.Findings {
		basePenalty := 0
		switch f.Severity {
		case SeverityLow:
			basePenalty = 2
		case SeverityMedium:
			basePenalty = 5
		case SeverityHigh:
			basePenalty = 10
		case SeverityCritical:
			basePenalty = 25
		}

		// guesses weigh less than certain findings
		switch f.Certainty {
		case "possible":
			basePenalty = basePenalty * 3 / 4
		case "wild-guess":
			basePenalty = basePenalty / 2
		}

		penalty += basePenalty
	}

	ar.QualityScore = max(100-penalty, 0)
}
