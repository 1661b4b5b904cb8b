package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"pydiatra/internal/config"
	"pydiatra/internal/models"
	"pydiatra/internal/refdata"

	"github.com/fatih/color"
)

// ReportGenerator handles formatting and displaying analysis results
type ReportGenerator struct {
	format string
	config *config.Config
	data   *refdata.Data
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(format string) *ReportGenerator {
	return &ReportGenerator{
		format: format,
		config: config.DefaultConfig(),
	}
}

// NewReportGeneratorWithConfig creates a report generator that can show
// tag descriptions from data.
func NewReportGeneratorWithConfig(cfg *config.Config, data *refdata.Data) *ReportGenerator {
	return &ReportGenerator{
		format: cfg.Output.Format,
		config: cfg,
		data:   data,
	}
}

// Generate creates a formatted report from analysis results
func (r *ReportGenerator) Generate(result *models.AnalysisResult) string {
	switch r.format {
	case "json":
		return r.generateJSON(result)
	case "console":
		return r.generateConsole(result)
	default:
		return r.generatePlain(result)
	}
}

// generatePlain writes one finding per line in traversal order.
func (r *ReportGenerator) generatePlain(result *models.AnalysisResult) string {
	var report strings.Builder
	for _, f := range result.Findings {
		report.WriteString(f.String())
		report.WriteString("\n")
	}
	return report.String()
}

// jsonFinding flattens a finding for JSON output.
type jsonFinding struct {
	Path      string   `json:"path"`
	Line      int      `json:"line,omitempty"`
	Kind      string   `json:"kind"`
	Args      []string `json:"args,omitempty"`
	Message   string   `json:"message"`
	Severity  string   `json:"severity"`
	Certainty string   `json:"certainty,omitempty"`
}

type jsonReport struct {
	*models.AnalysisResult
	Findings []jsonFinding `json:"findings"`
}

// generateJSON creates a JSON report
func (r *ReportGenerator) generateJSON(result *models.AnalysisResult) string {
	out := jsonReport{AnalysisResult: result, Findings: make([]jsonFinding, 0, len(result.Findings))}
	for _, f := range result.Findings {
		args := make([]string, len(f.Args))
		for i, a := range f.Args {
			args[i] = fmt.Sprint(a)
		}
		out.Findings = append(out.Findings, jsonFinding{
			Path:      f.Path,
			Line:      f.Line,
			Kind:      f.Kind,
			Args:      args,
			Message:   f.Message(),
			Severity:  f.Severity.String(),
			Certainty: f.Certainty,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON report: %v", err)
	}
	return string(data) + "\n"
}

// generateConsole creates a colorized console report
func (r *ReportGenerator) generateConsole(result *models.AnalysisResult) string {
	var report strings.Builder

	useColors := true
	verbose := false
	showDescriptions := false

	if r.config != nil {
		useColors = r.config.Output.Colors
		verbose = r.config.Output.Verbose
		showDescriptions = r.config.Output.ShowDescriptions
	}

	// Header
	if useColors {
		report.WriteString(color.CyanString("pydiatra analysis report\n"))
		report.WriteString(color.WhiteString("═══════════════════════════════════════\n\n"))
	} else {
		report.WriteString("pydiatra analysis report\n")
		report.WriteString("=======================================\n\n")
	}

	if verbose && r.config != nil {
		r.writeConfigInfo(&report, useColors)
	}

	r.writeSummary(&report, result, useColors)
	r.writeQualityScore(&report, result, useColors)

	if len(result.Findings) > 0 {
		r.writeSeveritySummary(&report, result, useColors)
		report.WriteString("\n")
		r.writeFindings(&report, result, useColors, showDescriptions)
	} else if useColors {
		report.WriteString(color.GreenString("No problems found.\n\n"))
	} else {
		report.WriteString("No problems found.\n\n")
	}

	if len(result.Errors) > 0 {
		r.writeErrors(&report, result, useColors)
	}

	// Footer
	if useColors {
		report.WriteString(color.WhiteString("Analysis completed in %s\n", result.AnalysisDuration))
	} else {
		report.WriteString(fmt.Sprintf("Analysis completed in %s\n", result.AnalysisDuration))
	}

	return report.String()
}

// writeQualityScore writes the quality score with color coding
func (r *ReportGenerator) writeQualityScore(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	score := result.QualityScore
	excellent, good, fair := 90, 75, 50
	if r.config != nil {
		excellent = r.config.Analysis.ScoreThresholds.Excellent
		good = r.config.Analysis.ScoreThresholds.Good
		fair = r.config.Analysis.ScoreThresholds.Fair
	}

	if !useColors {
		report.WriteString(fmt.Sprintf("Quality Score: %d/100\n\n", score))
		return
	}

	var scoreColor func(a ...interface{}) string
	switch {
	case score >= excellent:
		scoreColor = color.New(color.FgGreen).SprintFunc()
	case score >= good:
		scoreColor = color.New(color.FgYellow).SprintFunc()
	case score >= fair:
		scoreColor = color.New(color.FgHiYellow).SprintFunc()
	default:
		scoreColor = color.New(color.FgRed).SprintFunc()
	}
	report.WriteString(fmt.Sprintf("Quality Score: %s/100\n\n", scoreColor(score)))
}

// severityColor returns the color function for a severity level
func severityColor(severity string) func(a ...interface{}) string {
	switch severity {
	case "CRITICAL":
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case "HIGH":
		return color.New(color.FgRed).SprintFunc()
	case "MEDIUM":
		return color.New(color.FgYellow).SprintFunc()
	case "LOW":
		return color.New(color.FgBlue).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}

func (r *ReportGenerator) writeConfigInfo(report *strings.Builder, useColors bool) {
	disabled := "none"
	if len(r.config.Rules.Disabled) > 0 {
		disabled = strings.Join(r.config.Rules.Disabled, ", ")
	}
	st := r.config.Analysis.ScoreThresholds
	if useColors {
		report.WriteString(color.WhiteString("Configuration:\n"))
		report.WriteString(fmt.Sprintf("   Disabled tags: %s\n", color.CyanString(disabled)))
		report.WriteString(fmt.Sprintf("   Score thresholds: %s\n", color.CyanString("%d/%d/%d", st.Excellent, st.Good, st.Fair)))
	} else {
		report.WriteString("Configuration:\n")
		report.WriteString(fmt.Sprintf("   Disabled tags: %s\n", disabled))
		report.WriteString(fmt.Sprintf("   Score thresholds: %d/%d/%d\n", st.Excellent, st.Good, st.Fair))
	}
	report.WriteString("\n")
}

func (r *ReportGenerator) writeSummary(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("Summary:\n"))
	} else {
		report.WriteString("Summary:\n")
	}
	report.WriteString(fmt.Sprintf("   Files analyzed: %d\n", len(result.Files)))
	report.WriteString(fmt.Sprintf("   Tags emitted: %d\n", result.TotalTags))
	if len(result.Errors) > 0 {
		report.WriteString(fmt.Sprintf("   Files failed: %d\n", len(result.Errors)))
	}
	report.WriteString("\n")
}

func (r *ReportGenerator) writeSeveritySummary(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("Tags by Severity:\n"))
	} else {
		report.WriteString("Tags by Severity:\n")
	}

	severities := []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}
	for _, severity := range severities {
		count := result.TagsBySeverity[severity]
		if count == 0 {
			continue
		}
		if useColors {
			report.WriteString(fmt.Sprintf("   %s: %s\n", severity, severityColor(severity)(count)))
		} else {
			report.WriteString(fmt.Sprintf("   %s: %d\n", severity, count))
		}
	}
}

// writeFindings lists the findings grouped by file, in traversal order.
func (r *ReportGenerator) writeFindings(report *strings.Builder, result *models.AnalysisResult, useColors, showDescriptions bool) {
	if useColors {
		report.WriteString(color.WhiteString("Findings:\n"))
	} else {
		report.WriteString("Findings:\n")
	}
	report.WriteString(strings.Repeat("─", 50) + "\n")

	currentPath := ""
	for _, f := range result.Findings {
		if f.Path != currentPath {
			currentPath = f.Path
			if useColors {
				report.WriteString(color.CyanString("\n%s\n", f.Path))
			} else {
				report.WriteString(fmt.Sprintf("\n%s\n", f.Path))
			}
		}
		loc := "-"
		if f.Line > 0 {
			loc = fmt.Sprint(f.Line)
		}
		sev := f.Severity.String()
		if useColors {
			report.WriteString(fmt.Sprintf("   %5s  %-8s %s\n", loc, severityColor(sev)(sev), f.Message()))
		} else {
			report.WriteString(fmt.Sprintf("   %5s  %-8s %s\n", loc, sev, f.Message()))
		}
		if showDescriptions && r.data != nil {
			if desc := strings.TrimSpace(r.data.Info(f.Kind).Description); desc != "" {
				for _, line := range strings.Split(desc, "\n") {
					report.WriteString(fmt.Sprintf("          %s\n", strings.TrimSpace(line)))
				}
			}
		}
	}
	report.WriteString("\n")
}

func (r *ReportGenerator) writeErrors(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.RedString("Errors:\n"))
	} else {
		report.WriteString("Errors:\n")
	}
	for _, e := range result.Errors {
		report.WriteString(fmt.Sprintf("   %s: %s\n", e.Path, e.Message))
	}
	report.WriteString("\n")
}
