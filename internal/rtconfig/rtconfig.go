// Package rtconfig is the runtime's ambient configuration layer: a
// YAML file (optional) describing the Security Gate's policy level,
// content-filter overrides, and planner weights, with shell-style
// ${VAR}/${VAR:-default} expansion and .env overrides applied before
// parsing, plus an fsnotify watch for hot-reload.
//
// Grounded on the teacher's pkg/config/env.go (expandEnvVars' three-
// pattern regex table: ${VAR:-default}, ${VAR}, $VAR) and
// pkg/config/provider/file.go (godotenv-free file load + fsnotify
// directory watch with a debounce timer, since some filesystems don't
// support watching a single file directly).
package rtconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/planner"
	"github.com/kadirpekel/agentrt/internal/security"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`),
}

// expandEnvVars substitutes ${VAR:-default}, ${VAR}, and $VAR in order,
// verbatim in approach to the teacher's config/env.go. Each pass runs
// over the previous pass's output, so a substituted default or value
// that itself contains ${VAR} or $VAR is expanded by the later passes.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
	return s
}

// FilterOverride lets a config file add or replace a named
// ContentFilter pattern without recompiling the binary.
type FilterOverride struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Severity    string `yaml:"severity"`
	Category    string `yaml:"category"`
	Replacement string `yaml:"replacement"`
}

// raw is the YAML document shape, pre-expansion field names matching
// spec.md §4.4's policy vocabulary.
type raw struct {
	Security struct {
		PolicyLevel string           `yaml:"policyLevel"`
		Filters     []FilterOverride `yaml:"filters"`
	} `yaml:"security"`
	Planner struct {
		Weights planner.Weights `yaml:"weights"`
	} `yaml:"planner"`
}

// Config is the resolved, ready-to-use runtime configuration.
type Config struct {
	Policy         security.Policy
	FilterPatterns []security.FilterPattern
	PlannerWeights planner.Weights
}

// Default returns the configuration the runtime starts with absent any
// file: medium policy, the spec's default content patterns, and
// default planner weights.
func Default() Config {
	return Config{
		Policy:         security.DefaultPolicy(),
		FilterPatterns: security.DefaultPatterns(),
		PlannerWeights: planner.DefaultWeights(),
	}
}

// Load reads path (if non-empty), applies any sibling .env file via
// godotenv, expands ${VAR} references, and merges the result onto
// Default(). An empty path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return cfg, fmt.Errorf("rtconfig: loading %s: %w", envPath, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rtconfig: reading %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var doc raw
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return cfg, fmt.Errorf("rtconfig: parsing %s: %w", path, err)
	}

	return applyRaw(cfg, doc)
}

func applyRaw(cfg Config, doc raw) (Config, error) {
	if doc.Security.PolicyLevel != "" {
		level := security.PolicyLevel(doc.Security.PolicyLevel)
		preset, ok := security.Policies()[level]
		if !ok {
			return cfg, fmt.Errorf("rtconfig: unknown security policy level %q", doc.Security.PolicyLevel)
		}
		cfg.Policy = preset
	}

	for _, fo := range doc.Security.Filters {
		pattern, err := regexp.Compile(fo.Pattern)
		if err != nil {
			return cfg, fmt.Errorf("rtconfig: filter %q: %w", fo.Name, err)
		}
		cfg.FilterPatterns = upsertFilter(cfg.FilterPatterns, security.FilterPattern{
			Name:        fo.Name,
			Pattern:     pattern,
			Severity:    severityFromString(fo.Severity),
			Category:    security.FilterCategory(fo.Category),
			Replacement: fo.Replacement,
		})
	}

	cfg.PlannerWeights = doc.Planner.Weights

	return cfg, nil
}

func upsertFilter(patterns []security.FilterPattern, p security.FilterPattern) []security.FilterPattern {
	for i, existing := range patterns {
		if existing.Name == p.Name {
			patterns[i] = p
			return patterns
		}
	}
	return append(patterns, p)
}

func severityFromString(s string) model.Severity {
	switch strings.ToLower(s) {
	case "low":
		return model.SeverityLow
	case "high", "critical":
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// Watcher reloads Config from path whenever the file changes on disk,
// delivering each reload on Changes. Grounded on the teacher's
// FileProvider.Watch: fsnotify watches the containing directory (not
// the file itself, since not every filesystem supports that) and
// debounces rapid successive writes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan Config
	errs    chan error
}

// NewWatcher starts watching path's directory for changes to path.
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(absPath)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("rtconfig: watching %s: %w", dir, err)
	}

	w := &Watcher{
		path:    absPath,
		watcher: fw,
		changes: make(chan Config, 1),
		errs:    make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.changes)
	defer w.watcher.Close()

	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	target := filepath.Base(w.path)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				cfg, err := Load(w.path)
				if err != nil {
					select {
					case w.errs <- err:
					default:
					}
					return
				}
				select {
				case w.changes <- cfg:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Changes delivers reloaded Configs through a one-slot buffer; a reload
// that finds the slot still full is dropped.
func (w *Watcher) Changes() <-chan Config { return w.changes }

// Errors delivers load/watch errors encountered between reloads.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
