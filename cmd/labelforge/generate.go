package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"labelforge/label"
	"labelforge/profile"
	"labelforge/text"
)

var (
	labelFile   string
	outputPath  string
	outputDir   string
	profilePath string
	fontPath    string
	format      string
	textEngine  string
	scalePolicy string
	jobs        int
)

// generateCmd builds label models from text
var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate a label model from text",
	Long: `Generates the two-body label model for the given text.

With a text argument a single label is written to --output. With --file a
newline-delimited list of labels is generated into --output-dir, one model
per line, named after the sanitized label text.

Example:
  labelforge generate "Socket Wrenches" -o socket_wrenches.3mf
  labelforge generate --file labels.txt --output-dir out/ -f stl -j 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&labelFile, "file", "", "newline-delimited file of label texts (batch mode)")
	f.StringVarP(&outputPath, "output", "o", "label.3mf", "output file path (single label)")
	f.StringVar(&outputDir, "output-dir", ".", "output directory (batch mode)")
	f.StringVar(&profilePath, "profile", "cross-section.svg", "SVG file with the clip cross-section")
	f.StringVar(&fontPath, "font", "InterVariable.ttf", "TTF font file for the label text")
	f.StringVarP(&format, "format", "f", "3mf", "output format: 3mf (single container) or stl (file pair)")
	f.StringVar(&textEngine, "text-engine", "", "text engine: shaped, basic or inkscape (default from config)")
	f.StringVar(&scalePolicy, "scale-policy", "", "profile scaling: stretch or uniform (default from config)")
	f.IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "parallel workers in batch mode")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && labelFile == "" {
		return fmt.Errorf("provide label text or --file")
	}
	if len(args) == 1 && labelFile != "" {
		return fmt.Errorf("label text and --file are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(profilePath); err != nil {
		return fmt.Errorf("profile file not found: %s", profilePath)
	}
	engineKind := cfg.TextEngine
	var ttf []byte
	if engineKind != "inkscape" {
		ttf, err = os.ReadFile(fontPath)
		if err != nil {
			return fmt.Errorf("font file not found: %s", fontPath)
		}
	}

	logger.Debug("configuration resolved",
		zap.String("engine", engineKind),
		zap.String("profile", profilePath),
		zap.String("format", format))

	prof, err := profile.Load(profilePath)
	if err != nil {
		return err
	}
	pipeline, err := label.NewPipeline(cfg, prof, logger)
	if err != nil {
		return err
	}
	newEngine := func() (text.Engine, error) {
		return text.NewEngine(engineKind, text.Options{
			TTF:        ttf,
			SizeMM:     cfg.FontSize,
			FontFamily: cfg.FontFamily,
		})
	}

	if labelFile != "" {
		return runBatch(pipeline, newEngine)
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	if err := pipeline.Generate(engine, args[0], outputPath, format); err != nil {
		return err
	}
	fmt.Printf("Generated label: %s\n", outputPath)
	return nil
}

func runBatch(pipeline *label.Pipeline, newEngine label.EngineFactory) error {
	labels, err := label.ReadLabelFile(labelFile)
	if err != nil {
		return err
	}
	res, err := pipeline.RunBatch(newEngine, labels, outputDir, format, jobs)
	if err != nil {
		return err
	}
	for lbl, lerr := range res.Errors {
		fmt.Fprintf(os.Stderr, "  failed %q: %v\n", lbl, lerr)
	}
	fmt.Printf("Generated %d/%d labels in %s\n", res.Succeeded, len(labels), outputDir)
	if res.Succeeded == 0 {
		return fmt.Errorf("all %d labels failed", res.Failed)
	}
	// Partial success still exits 0; failures were reported above.
	return nil
}

// loadConfig merges the config file, defaults and flag overrides.
func loadConfig() (label.Config, error) {
	cfg := label.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = label.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}
	if textEngine != "" {
		cfg.TextEngine = strings.ToLower(textEngine)
	}
	if scalePolicy != "" {
		cfg.ScalePolicy = strings.ToLower(scalePolicy)
	}
	if _, err := profile.ParseScalePolicy(cfg.ScalePolicy); err != nil {
		return cfg, err
	}
	switch strings.ToLower(format) {
	case "3mf", "stl":
	default:
		return cfg, fmt.Errorf("unsupported format %q, want 3mf or stl", format)
	}
	if ext := filepath.Ext(outputPath); ext == "" {
		outputPath += "." + strings.ToLower(format)
	}
	return cfg, cfg.Validate()
}
