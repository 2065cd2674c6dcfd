// Package config merges run settings from defaults, an optional YAML run
// file, the environment (including a .env file) and command-line flags, in
// that order of precedence.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/rasterize"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig       = "ARTIFACT_CONFIG"
	EnvOutputDir    = "ARTIFACT_OUTPUT_DIR"
	EnvTier         = "ARTIFACT_TIER"
	EnvDPI          = "ARTIFACT_DPI"
	EnvKeepClean    = "ARTIFACT_KEEP_CLEAN"
	EnvExportFormat = "ARTIFACT_EXPORT_FORMAT"
	EnvImageFormat  = "ARTIFACT_IMAGE_FORMAT"
	EnvTemplatesDir = "ARTIFACT_TEMPLATES_DIR"
	EnvProfile      = "ARTIFACT_PROFILE"
	EnvSeed         = "ARTIFACT_SEED"
	EnvGCSBucket    = "GCS_BUCKET"
	EnvBQProject    = "BQ_PROJECT"
	EnvBQDataset    = "BQ_DATASET"
	EnvGeminiModel  = "GEMINI_MODEL"
	EnvLogLevel     = "LOG_LEVEL"
)

// Config holds the settings of one generate run.
type Config struct {
	Invoices   int `yaml:"invoices"`
	Receipts   int `yaml:"receipts"`
	Statements int `yaml:"statements"`

	OutputDir    string `yaml:"output_dir"`
	Tier         string `yaml:"tier"`
	DPI          int    `yaml:"dpi"`
	KeepClean    bool   `yaml:"keep_clean"`
	ExportFormat string `yaml:"export_format"`
	ImageFormat  string `yaml:"image_format"`

	// Seed makes the run reproducible when set.
	Seed *int64 `yaml:"seed"`

	TemplatesDir string `yaml:"templates_dir"`
	Template     string `yaml:"template"`
	// ProfilePath is a region profile file or gs:// URI; empty uses the
	// built-in profile.
	ProfilePath string `yaml:"profile"`

	// GCSBucket is a bucket name or gs://bucket/prefix to upload the output tree to.
	GCSBucket string `yaml:"gcs_bucket"`
	BQProject string `yaml:"bq_project"`
	BQDataset string `yaml:"bq_dataset"`

	LLMVocab      bool   `yaml:"llm_vocab"`
	LLMVocabItems int    `yaml:"llm_vocab_items"`
	GeminiModel   string `yaml:"gemini_model"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	legacyN int
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		OutputDir:     "output",
		Tier:          string(degrade.Medium),
		DPI:           rasterize.DefaultDPI,
		ExportFormat:  "xlsx",
		ImageFormat:   string(rasterize.PNG),
		TemplatesDir:  "templates",
		BQDataset:     "synthetic_documents",
		LLMVocabItems: 5,
		GeminiModel:   vocab.DefaultModelName,
		LogLevel:      "info",
		legacyN:       -1,
	}
}

// Load builds the configuration for a generate run. Warnings describe
// deprecated usage that still worked.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, []string, error) {
	cfg := Defaults()

	path := getenv(EnvConfig)
	if p, ok := scanFlag(args, "config"); ok {
		path = p
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, nil, err
	}

	cfg.RegisterFlags(fs)
	fs.String("config", path, "YAML run file (env "+EnvConfig+")")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	var warnings []string
	if cfg.legacyN >= 0 {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if set["invoices"] {
			warnings = append(warnings, "-n is deprecated and ignored because -invoices is set")
		} else {
			cfg.Invoices = cfg.legacyN
			warnings = append(warnings, "-n is deprecated, use -invoices")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Configf("dotenv", "load %s: %v", path, err)
	}
	return nil
}

// LoadFile overlays the fields present in a YAML run file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Configf("config", "read %s: %v", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Configf("config", "parse %s: %v", path, err)
	}
	return nil
}

// ApplyEnv overlays every variable that is set and non-empty.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		EnvOutputDir:    &c.OutputDir,
		EnvTier:         &c.Tier,
		EnvExportFormat: &c.ExportFormat,
		EnvImageFormat:  &c.ImageFormat,
		EnvTemplatesDir: &c.TemplatesDir,
		EnvProfile:      &c.ProfilePath,
		EnvGCSBucket:    &c.GCSBucket,
		EnvBQProject:    &c.BQProject,
		EnvBQDataset:    &c.BQDataset,
		EnvGeminiModel:  &c.GeminiModel,
		EnvLogLevel:     &c.LogLevel,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvDPI); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.Configf(EnvDPI, "%q is not an integer", v)
		}
		c.DPI = n
	}
	if v := getenv(EnvKeepClean); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errs.Configf(EnvKeepClean, "%q is not a boolean", v)
		}
		c.KeepClean = b
	}
	if v := getenv(EnvSeed); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errs.Configf(EnvSeed, "%q is not an integer", v)
		}
		c.Seed = &n
	}
	return nil
}

// RegisterFlags binds the generate flags to c, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Invoices, "invoices", c.Invoices, "Number of invoices to generate")
	fs.IntVar(&c.Receipts, "receipts", c.Receipts, "Number of receipts to generate")
	fs.IntVar(&c.Statements, "statements", c.Statements, "Number of bank statements to generate")
	fs.IntVar(&c.legacyN, "n", c.legacyN, "Deprecated alias for -invoices")

	fs.StringVar(&c.OutputDir, "o", c.OutputDir, "Output directory")
	fs.StringVar(&c.OutputDir, "output", c.OutputDir, "Output directory")
	fs.StringVar(&c.Tier, "d", c.Tier, "Degradation tier: light, medium or heavy")
	fs.StringVar(&c.Tier, "degradation", c.Tier, "Degradation tier: light, medium or heavy")
	fs.IntVar(&c.DPI, "dpi", c.DPI, "Rasterization resolution")
	fs.BoolVar(&c.KeepClean, "keep-clean", c.KeepClean, "Keep pre-degradation images")
	fs.StringVar(&c.ExportFormat, "format", c.ExportFormat, "Ground truth format: xlsx or csv")
	fs.StringVar(&c.ImageFormat, "image-format", c.ImageFormat, "Image format: png or jpeg")
	fs.Var(&seedFlag{dst: &c.Seed}, "seed", "Random seed for a reproducible run")

	fs.StringVar(&c.TemplatesDir, "templates", c.TemplatesDir, "Template root directory")
	fs.StringVar(&c.Template, "template", c.Template, "Use this template for every document instead of a random one")
	fs.StringVar(&c.ProfilePath, "profile", c.ProfilePath, "Region profile YAML file or gs:// URI")

	fs.StringVar(&c.GCSBucket, "gcs-bucket", c.GCSBucket, "Upload the output tree to this bucket or gs://bucket/prefix")
	fs.StringVar(&c.BQProject, "bq-project", c.BQProject, "Publish summaries to BigQuery in this project")
	fs.StringVar(&c.BQDataset, "bq-dataset", c.BQDataset, "BigQuery dataset for summaries")

	fs.BoolVar(&c.LLMVocab, "llm-vocab", c.LLMVocab, "Extend store vocabularies with Gemini suggestions")
	fs.IntVar(&c.LLMVocabItems, "llm-vocab-items", c.LLMVocabItems, "Suggestions requested per store category")
	fs.StringVar(&c.GeminiModel, "gemini-model", c.GeminiModel, "Gemini model for -llm-vocab")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level")
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "Log JSON lines instead of console output")
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	for name, n := range map[string]int{"invoices": c.Invoices, "receipts": c.Receipts, "statements": c.Statements} {
		if n < 0 {
			return errs.Configf(name, "count %d is negative", n)
		}
	}
	if c.OutputDir == "" {
		return errs.Configf("output", "empty output directory")
	}
	if _, err := degrade.ParseTier(c.Tier); err != nil {
		return err
	}
	if c.DPI <= 0 {
		return errs.Configf("dpi", "%d is not a positive resolution", c.DPI)
	}
	switch c.ExportFormat {
	case "xlsx", "csv":
	default:
		return errs.Configf("format", "unsupported export format %q (want xlsx or csv)", c.ExportFormat)
	}
	switch rasterize.Format(c.ImageFormat) {
	case rasterize.PNG, rasterize.JPEG:
	default:
		return errs.Configf("image-format", "unsupported image format %q (want png or jpeg)", c.ImageFormat)
	}
	if c.BQProject != "" && c.BQDataset == "" {
		return errs.Configf("bq-dataset", "required when -bq-project is set")
	}
	if c.LLMVocab && c.LLMVocabItems <= 0 {
		return errs.Configf("llm-vocab-items", "%d must be positive", c.LLMVocabItems)
	}
	return nil
}

// Counts maps each kind to its requested count.
func (c *Config) Counts() map[record.Kind]int {
	return map[record.Kind]int{
		record.KindInvoice:   c.Invoices,
		record.KindReceipt:   c.Receipts,
		record.KindStatement: c.Statements,
	}
}

// Total is the number of documents requested across kinds.
func (c *Config) Total() int {
	return c.Invoices + c.Receipts + c.Statements
}

// seedFlag is a flag.Value for an optional int64.
type seedFlag struct {
	dst **int64
}

func (s *seedFlag) String() string {
	if s.dst == nil || *s.dst == nil {
		return ""
	}
	return strconv.FormatInt(**s.dst, 10)
}

func (s *seedFlag) Set(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("seed %q is not an integer", v)
	}
	*s.dst = &n
	return nil
}

// scanFlag finds -name value or -name=value in args before flags are parsed.
func scanFlag(args []string, name string) (string, bool) {
	for i, a := range args {
		if a == "--" {
			break
		}
		trimmed := strings.TrimLeft(a, "-")
		if trimmed == a || len(a)-len(trimmed) > 2 {
			continue
		}
		if v, ok := strings.CutPrefix(trimmed, name+"="); ok {
			return v, true
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}
