package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pydiatra/internal/analyzer/detectors"
	"pydiatra/internal/cache"
	actx "pydiatra/internal/context"
	"pydiatra/internal/models"
	"pydiatra/internal/pyast"
	"pydiatra/internal/refdata"
)

// Analyze runs every rule over a parsed unit. The tags come in traversal
// order and include private ones. The error is non-nil only when a rule
// met a value it cannot handle, which is a bug in the analyzer.
func Analyze(path string, module pyast.Node, data *refdata.Data) ([]models.Tag, error) {
	if path == "" {
		return nil, models.ErrEmptyPath
	}
	v := NewVisitor(path, data)
	var tags []models.Tag
	for t := range v.Visit(module) {
		tags = append(tags, t)
	}
	return tags, v.Err()
}

// CheckSource parses src and returns its public tags: front-end warnings
// first, then the findings of the rules. Source that does not parse gives
// a single syntax-error tag.
func CheckSource(ctx context.Context, path string, src []byte, data *refdata.Data) ([]models.Tag, error) {
	if path == "" {
		return nil, models.ErrEmptyPath
	}
	module, warnings, err := pyast.Parse(ctx, path, src)
	if err != nil {
		var se *pyast.SyntaxError
		if errors.As(err, &se) {
			return []models.Tag{models.MustTag(path, se.Line, "syntax-error", se.Msg)}, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	tags := make([]models.Tag, 0, len(warnings))
	for _, w := range warnings {
		if w.Msg == pyast.MsgAssertionAlwaysTrue {
			tags = append(tags, models.MustTag(path, w.Line, "assertion-always-true"))
		} else {
			tags = append(tags, models.MustTag(path, w.Line, "syntax-warning", w.Msg))
		}
	}

	found, err := Analyze(path, module, data)
	if err != nil {
		return nil, fmt.Errorf("analysing %s: %w", path, err)
	}
	return append(tags, models.FilterPublic(found)...), nil
}

// AnalyzePatternCall runs the regular-expression checks on a single call
// expression, as if the re module were imported under its own name.
func AnalyzePatternCall(path string, call *pyast.Call) ([]models.Tag, error) {
	if path == "" {
		return nil, models.ErrEmptyPath
	}
	var tags []models.Tag
	emit := func(kind string, args ...any) {
		tags = append(tags, models.MustTag(path, call, kind, args...))
	}
	err := detectors.NewRegexpDetector().Check(actx.NewAnalysisContext(path, nil), call, emit)
	return tags, err
}

// Analyzer checks many files concurrently.
type Analyzer struct {
	data     *refdata.Data
	jobs     int
	cache    *cache.Cache
	logger   *zap.Logger
	disabled map[string]bool
	severity map[string]models.Severity
	version  string
}

type Option func(*Analyzer)

// WithJobs sets the number of files analysed at once. Values below 1
// select the number of CPUs.
func WithJobs(n int) Option {
	return func(a *Analyzer) { a.jobs = n }
}

func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithDisabledTags drops findings of the given kinds.
func WithDisabledTags(kinds []string) Option {
	return func(a *Analyzer) {
		for _, k := range kinds {
			a.disabled[k] = true
		}
	}
}

// WithSeverityOverrides replaces the catalogue severity of some kinds.
func WithSeverityOverrides(m map[string]models.Severity) Option {
	return func(a *Analyzer) { a.severity = m }
}

// WithVersion sets the version string that cache keys depend on.
func WithVersion(v string) Option {
	return func(a *Analyzer) { a.version = v }
}

func NewAnalyzer(data *refdata.Data, opts ...Option) *Analyzer {
	a := &Analyzer{
		data:     data,
		logger:   zap.NewNop(),
		disabled: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.jobs < 1 {
		a.jobs = runtime.NumCPU()
	}
	return a
}

// DetectorNames lists the in-depth checks the rules delegate to.
func (a *Analyzer) DetectorNames() []string {
	return []string{
		detectors.NewRegexpDetector().Name(),
		detectors.NewFormattingDetector().Name(),
		detectors.NewCodeCopyDetector().Name(),
	}
}

type unitResult struct {
	tags []models.Tag
	err  error
}

// AnalyzeFiles analyses paths with up to jobs workers. Findings are
// reported in the order of paths whatever order the workers finish in.
// A file that cannot be read or analysed is recorded in the result's
// errors and does not affect the others. The returned error is only set
// when ctx is cancelled.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) (*models.AnalysisResult, error) {
	startTime := time.Now()
	results := make([]unitResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := models.NewAnalysisResult()
	for i, path := range paths {
		r := results[i]
		if r.err != nil {
			a.logger.Error("analysis failed", zap.String("path", path), zap.Error(r.err))
			result.AddError(path, r.err)
			continue
		}
		result.Files = append(result.Files, path)
		for _, t := range r.tags {
			if a.disabled[t.Kind] {
				continue
			}
			info := a.data.Info(t.Kind)
			if s, ok := a.severity[t.Kind]; ok {
				info.Severity = s
			}
			result.AddFinding(models.Finding{Tag: t, Severity: info.Severity, Certainty: info.Certainty})
		}
	}

	result.AnalysisDuration = time.Since(startTime).String()
	result.CalculateScore()
	return result, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) unitResult {
	src, err := os.ReadFile(path)
	if err != nil {
		return unitResult{err: err}
	}
	key := cache.NewKey(a.version, path, src)
	if tags, ok := a.cache.Get(key); ok {
		a.logger.Debug("cache hit", zap.String("path", path))
		return unitResult{tags: tags}
	}

	start := time.Now()
	tags, err := CheckSource(ctx, path, src, a.data)
	if err != nil {
		return unitResult{err: err}
	}
	a.logger.Debug("analysed",
		zap.String("path", path),
		zap.Int("tags", len(tags)),
		zap.Duration("took", time.Since(start)))
	if err := a.cache.Put(key, tags); err != nil {
		a.logger.Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
	return unitResult{tags: tags}
}
