package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"imagedupes/imageprocessor"
	"imagedupes/logging"
	"imagedupes/report"
)

const (
	// FileName is the configuration file looked up when --config is not given
	FileName = "ConfigFile.ini"
	// Section holds every option
	Section = "Options"

	DefaultSimilarityRatio   = 0.6
	DefaultMinimumSimilarity = 50
	DefaultWorkers           = 4
)

// RunConfig is the immutable configuration of one run
type RunConfig struct {
	Path              string
	Recursive         bool
	SimilarityRatio   float64
	MinimumSimilarity int
	Workers           int
	Autoremove        bool // declared, deletion is not implemented
	Extensions        []string
	OutputPath        string
	CachePath         string // empty disables the descriptor cache
}

// Defaults returns the configuration used when nothing is set
func Defaults() RunConfig {
	return RunConfig{
		Path:              ".",
		SimilarityRatio:   DefaultSimilarityRatio,
		MinimumSimilarity: DefaultMinimumSimilarity,
		Workers:           DefaultWorkers,
		Extensions:        append([]string(nil), imageprocessor.DefaultExtensions...),
	}
}

// Overrides carries CLI values; a nil pointer means the flag was not set
type Overrides struct {
	Path              string
	Recursive         *bool
	SimilarityRatio   *float64
	MinimumSimilarity *int
	Workers           *int
	OutputPath        *string
	CachePath         *string
	NoCache           bool
}

// Error is a configuration value that could not be used. It is never fatal:
// the default replaces the value.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Find returns the configuration file to read: explicit, then the working
// directory, then next to the executable. An empty result means none exists.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fileExists(FileName) {
		return FileName
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), FileName)
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// Load reads the configuration file (when present), applies CLI overrides and
// fills derived defaults. Invalid values are logged and replaced by defaults;
// only an unreadable explicit file is an error.
func Load(configPath string, overrides Overrides, defaultCachePath string) (RunConfig, []error, error) {
	cfg := Defaults()
	cfg.CachePath = defaultCachePath

	var problems []error
	if configPath != "" {
		file, err := ini.Load(configPath)
		if err != nil {
			return cfg, nil, fmt.Errorf("cannot read configuration %s: %w", configPath, err)
		}
		problems = applyFile(&cfg, file.Section(Section))
	}

	problems = append(problems, applyOverrides(&cfg, overrides)...)

	if cfg.OutputPath == "" {
		cfg.OutputPath = report.DefaultPath(cfg.Path)
	}
	if cfg.Autoremove {
		logging.LogWarning("autoremove is enabled in the configuration but deleting duplicates is not supported; nothing will be removed")
	}

	for _, p := range problems {
		logging.LogWarning("Configuration: %v. Using the default value instead.", p)
	}
	return cfg, problems, nil
}

// applyFile reads the [Options] section into cfg
func applyFile(cfg *RunConfig, sec *ini.Section) []error {
	var problems []error

	if v := strings.TrimSpace(sec.Key("path").String()); v != "" {
		cfg.Path = v
	}

	if sec.HasKey("autoremove") {
		if b, err := sec.Key("autoremove").Bool(); err != nil {
			problems = append(problems, &Error{Key: "autoremove", Value: sec.Key("autoremove").String(), Err: err})
		} else {
			cfg.Autoremove = b
		}
	}

	if sec.HasKey("recursive") {
		if b, err := sec.Key("recursive").Bool(); err != nil {
			problems = append(problems, &Error{Key: "recursive", Value: sec.Key("recursive").String(), Err: err})
		} else {
			cfg.Recursive = b
		}
	}

	if sec.HasKey("similarity_ratio") {
		raw := sec.Key("similarity_ratio").String()
		if f, err := sec.Key("similarity_ratio").Float64(); err != nil {
			problems = append(problems, &Error{Key: "similarity_ratio", Value: raw, Err: err})
		} else if err := validateRatio(f); err != nil {
			problems = append(problems, &Error{Key: "similarity_ratio", Value: raw, Err: err})
		} else {
			cfg.SimilarityRatio = f
		}
	}

	if sec.HasKey("minimum_similarity") {
		raw := sec.Key("minimum_similarity").String()
		if n, err := sec.Key("minimum_similarity").Int(); err != nil {
			problems = append(problems, &Error{Key: "minimum_similarity", Value: raw, Err: err})
		} else if err := validateMinimum(n); err != nil {
			problems = append(problems, &Error{Key: "minimum_similarity", Value: raw, Err: err})
		} else {
			cfg.MinimumSimilarity = n
		}
	}

	if sec.HasKey("processors") {
		raw := sec.Key("processors").String()
		if n, err := sec.Key("processors").Int(); err != nil {
			problems = append(problems, &Error{Key: "processors", Value: raw, Err: err})
		} else if err := validateWorkers(n); err != nil {
			problems = append(problems, &Error{Key: "processors", Value: raw, Err: err})
		} else {
			cfg.Workers = n
		}
	}

	if sec.HasKey("extensions") {
		raw := sec.Key("extensions").String()
		exts, err := parseExtensions(raw)
		if err != nil {
			problems = append(problems, &Error{Key: "extensions", Value: raw, Err: err})
		} else {
			cfg.Extensions = exts
		}
	}

	if v := strings.TrimSpace(sec.Key("output").String()); v != "" {
		cfg.OutputPath = v
	}
	if sec.HasKey("cache") {
		cfg.CachePath = strings.TrimSpace(sec.Key("cache").String())
	}

	return problems
}

// applyOverrides applies explicitly set CLI values on top of cfg
func applyOverrides(cfg *RunConfig, o Overrides) []error {
	var problems []error

	if strings.TrimSpace(o.Path) != "" {
		cfg.Path = o.Path
	}
	if o.Recursive != nil {
		cfg.Recursive = *o.Recursive
	}
	if o.SimilarityRatio != nil {
		if err := validateRatio(*o.SimilarityRatio); err != nil {
			problems = append(problems, &Error{Key: "--ratio", Value: fmt.Sprint(*o.SimilarityRatio), Err: err})
		} else {
			cfg.SimilarityRatio = *o.SimilarityRatio
		}
	}
	if o.MinimumSimilarity != nil {
		if err := validateMinimum(*o.MinimumSimilarity); err != nil {
			problems = append(problems, &Error{Key: "--min-similarity", Value: fmt.Sprint(*o.MinimumSimilarity), Err: err})
		} else {
			cfg.MinimumSimilarity = *o.MinimumSimilarity
		}
	}
	if o.Workers != nil {
		if err := validateWorkers(*o.Workers); err != nil {
			problems = append(problems, &Error{Key: "--workers", Value: fmt.Sprint(*o.Workers), Err: err})
		} else {
			cfg.Workers = *o.Workers
		}
	}
	if o.OutputPath != nil && *o.OutputPath != "" {
		cfg.OutputPath = *o.OutputPath
	}
	if o.CachePath != nil {
		cfg.CachePath = *o.CachePath
	}
	if o.NoCache {
		cfg.CachePath = ""
	}
	return problems
}

func validateRatio(f float64) error {
	if !(f > 0 && f <= 1) {
		return errors.New("must be in (0, 1]")
	}
	return nil
}

func validateMinimum(n int) error {
	if n < 0 || n > 100 {
		return errors.New("must be between 0 and 100")
	}
	return nil
}

func validateWorkers(n int) error {
	if n < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

func parseExtensions(raw string) ([]string, error) {
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		ext := imageprocessor.NormalizeExtension(part)
		if ext == "" {
			continue
		}
		if !imageprocessor.IsSupportedExtension(ext) {
			return nil, fmt.Errorf("unsupported extension %s", ext)
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return nil, errors.New("no extensions listed")
	}
	return exts, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
