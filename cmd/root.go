package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pydiatra/internal/analyzer"
	"pydiatra/internal/cache"
	"pydiatra/internal/config"
	"pydiatra/internal/logging"
	"pydiatra/internal/models"
	"pydiatra/internal/refdata"
	"pydiatra/internal/scanner"
	"pydiatra/internal/watcher"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Version is set at build time with -ldflags "-X pydiatra/cmd.Version=...".
var Version = "0.1.0-dev"

// Exit statuses
const (
	exitClean    = 0
	exitCrash    = 1
	exitFindings = 2
)

var (
	formatFlag         string
	watchFlag          bool
	configFlag         string
	generateConfigFlag bool
	jobsFlag           string
	disableFlag        []string
	verboseFlag        bool
	cacheFlag          bool
	dataDirFlag        string
)

// exitStatus carries a non-zero exit status through cobra without
// printing anything.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pydiatra [files or directories]",
	Short: "A static checker for Python code",
	Long: `pydiatra is a static analysis tool that looks for suspicious constructs
in Python source: broken regular expressions, bad format strings, bare
except clauses, obsolete imports and more.

Exit status is 0 when nothing was found, 2 when any problem was reported
and 1 when a file could not be analysed.

Examples:
  pydiatra .                             # Check every Python file below .
  pydiatra setup.py pkg/                 # Check specific files and directories
  pydiatra -j auto --format=json src     # Parallel run with JSON output
  pydiatra --config=.pydiatra.yml .      # Use custom config
  pydiatra --generate-config             # Generate sample config file
  pydiatra tags                          # List the tags pydiatra can emit`,
	Version:       Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnalysis,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags pydiatra can emit",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var status exitStatus
		if errors.As(err, &status) {
			os.Exit(int(status))
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCrash)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format (plain, console, json)")
	rootCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch mode for development")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().BoolVar(&generateConfigFlag, "generate-config", false, "Generate sample configuration file")
	rootCmd.Flags().StringVarP(&jobsFlag, "jobs", "j", "", "Number of files analysed in parallel, or auto")
	rootCmd.Flags().StringSliceVar(&disableFlag, "disable", nil, "Tags that are never reported (repeatable, comma separated)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Trace what pydiatra is doing on stderr")
	rootCmd.Flags().BoolVar(&cacheFlag, "cache", false, "Reuse results of unchanged files between runs")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory with replacement reference data files")

	rootCmd.SetVersionTemplate("pydiatra {{.Version}}\n")
	rootCmd.AddCommand(tagsCmd)
}

// loadConfig reads the configuration and applies the command-line flags
// that were given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = formatFlag
	}
	if flags.Changed("jobs") {
		n, err := config.ParseJobs(jobsFlag)
		if err != nil {
			return nil, err
		}
		cfg.Analysis.Jobs = n
	}
	if flags.Changed("disable") {
		cfg.Rules.Disabled = append(cfg.Rules.Disabled, disableFlag...)
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = verboseFlag
	}
	if flags.Changed("cache") {
		cfg.Analysis.Cache.Enabled = cacheFlag
	}
	if flags.Changed("data-dir") {
		cfg.Analysis.DataDir = dataDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// colors only make sense on a terminal
	if cfg.Output.OutputFile != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.Output.Colors = false
	}
	color.NoColor = color.NoColor || !cfg.Output.Colors
	return cfg, nil
}

func loadData(cfg *config.Config) (*refdata.Data, error) {
	if cfg.Analysis.DataDir == "" {
		return refdata.Default()
	}
	return refdata.Load(cfg.Analysis.DataDir)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	if generateConfigFlag {
		return generateConfig()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	data, err := loadData(cfg)
	if err != nil {
		return fmt.Errorf("loading reference data: %w", err)
	}

	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := scanner.New(cfg.Files).Collect(args)
	if err != nil {
		return fmt.Errorf("collecting files: %w", err)
	}

	engine, err := newEngine(cfg, data, logger)
	if err != nil {
		return err
	}
	reportGen := analyzer.NewReportGeneratorWithConfig(cfg, data)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(files) == 0 && !watchFlag {
		if cfg.Output.Format == "console" {
			color.New(color.FgYellow).Fprintln(os.Stderr, "No Python files found to analyze")
		}
		return nil
	}

	logger.Info("analysing",
		zap.Int("files", len(files)),
		zap.Strings("detectors", engine.DetectorNames()))

	result, err := engine.AnalyzeFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if err := emitReport(cmd.OutOrStdout(), reportGen.Generate(result), cfg); err != nil {
		return err
	}

	if watchFlag {
		return watch(ctx, cmd.OutOrStdout(), cfg, args, engine, reportGen, logger)
	}
	if status := exitStatusFor(result); status != exitClean {
		return exitStatus(status)
	}
	return nil
}

func newEngine(cfg *config.Config, data *refdata.Data, logger *zap.Logger) (*analyzer.Analyzer, error) {
	severity, err := cfg.SeverityOverrides()
	if err != nil {
		return nil, err
	}
	opts := []analyzer.Option{
		analyzer.WithJobs(cfg.Analysis.Jobs),
		analyzer.WithLogger(logger),
		analyzer.WithDisabledTags(cfg.Rules.Disabled),
		analyzer.WithSeverityOverrides(severity),
		analyzer.WithVersion(Version),
	}
	if cfg.Analysis.Cache.Enabled {
		c, err := cache.Open(cfg.Analysis.Cache.Dir, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analyzer.WithCache(c))
	}
	return analyzer.NewAnalyzer(data, opts...), nil
}

// exitStatusFor maps a result to the process exit status.
func exitStatusFor(result *models.AnalysisResult) int {
	switch {
	case len(result.Errors) > 0:
		return exitCrash
	case result.TotalTags > 0:
		return exitFindings
	default:
		return exitClean
	}
}

func emitReport(w io.Writer, report string, cfg *config.Config) error {
	if cfg.Output.OutputFile == "" {
		_, err := io.WriteString(w, report)
		return err
	}
	if err := writeReportToFile(report, cfg.Output.OutputFile); err != nil {
		return fmt.Errorf("failed to write report to file: %w", err)
	}
	if cfg.Output.Format == "console" {
		color.New(color.FgGreen).Fprintf(os.Stderr, "Report saved to: %s\n", cfg.Output.OutputFile)
	}
	return nil
}

// watch re-analyses changed files until ctx is cancelled.
func watch(ctx context.Context, out io.Writer, cfg *config.Config, roots []string,
	engine *analyzer.Analyzer, reportGen *analyzer.ReportGenerator, logger *zap.Logger) error {
	fw, err := watcher.NewFileWatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fw.Close()

	handler := func(changed []string) error {
		var existing []string
		for _, p := range changed {
			if _, err := os.Stat(p); err == nil {
				existing = append(existing, p)
			}
		}
		if len(existing) == 0 {
			return nil
		}
		result, err := engine.AnalyzeFiles(ctx, existing)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		return emitReport(out, reportGen.Generate(result), cfg)
	}
	if err := fw.Watch(roots, handler); err != nil {
		return err
	}
	if cfg.Output.Format == "console" {
		color.New(color.FgCyan).Fprintf(os.Stderr, "Watching %d directories, press Ctrl+C to stop\n", len(fw.GetWatchedPaths()))
	}
	<-ctx.Done()
	return nil
}

func runTags(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := loadData(cfg)
	if err != nil {
		return fmt.Errorf("loading reference data: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, name := range data.TagNames() {
		info := data.Info(name)
		status := ""
		if !cfg.IsTagEnabled(name) {
			status = " (disabled)"
		}
		fmt.Fprintf(w, "%-34s %-8s %s%s\n", name, info.Severity, info.Certainty, status)
		if cfg.Output.Verbose {
			for _, line := range strings.Split(strings.TrimSpace(info.Description), "\n") {
				fmt.Fprintf(w, "    %s\n", strings.TrimSpace(line))
			}
		}
	}
	return nil
}

func writeReportToFile(report, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, []byte(report), 0644)
}

func generateConfig() error {
	configPath := ".pydiatra.yml"
	if err := config.GenerateConfig(configPath); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	color.Green("Generated sample configuration file: %s\n", configPath)
	color.Cyan("Edit this file to customize pydiatra behavior\n")
	color.Cyan("Run 'pydiatra --config=%s .' to use it\n", configPath)
	return nil
}
