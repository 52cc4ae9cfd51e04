// Package suite loads declarative scenario files and tenant files from disk
// and turns them into compiled orchestrator plans and a tenant registry.
//
// Every structural problem (unknown capabilities, unknown sessions,
// references to artifacts no fixture produces, fixture cycles) is reported
// at load time so a broken suite never starts executing.
package suite

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/orchestrator"
)

// CapabilitySource resolves configured capability names.
type CapabilitySource interface {
	Capability(name string) (domain.Capability, bool)
}

// Load compiles every scenario in the files matched by patterns. A pattern
// may be a glob or a directory, in which case its *.yaml and *.yml files are
// used. All problems are collected so callers can report them together; the
// returned plans are the ones that compiled.
func Load(ctx context.Context, patterns []string, caps CapabilitySource) ([]*orchestrator.Plan, error) {
	plans, problems := LoadAll(ctx, patterns, caps)
	return plans, stderrors.Join(problems...)
}

// LoadAll is Load with the problems kept apart, one entry per broken
// scenario or file, each naming the file it came from.
func LoadAll(ctx context.Context, patterns []string, caps CapabilitySource) ([]*orchestrator.Plan, []error) {
	logger := zerolog.Ctx(ctx).With().Str("component", "suite").Logger()

	files, err := Expand(patterns)
	if err != nil {
		return nil, []error{err}
	}

	var (
		plans []*orchestrator.Plan
		errs  []error
		seen  = make(map[string]string)
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, []error{err}
		}

		filePlans, fileErrs := loadFile(path, caps)
		errs = append(errs, fileErrs...)
		for _, p := range filePlans {
			if prev, dup := seen[p.ID()]; dup {
				errs = append(errs, fmt.Errorf("%w: %s: scenario %q already declared in %s",
					trellerrors.ErrDuplicateID, path, p.ID(), prev))
				continue
			}
			seen[p.ID()] = path
			plans = append(plans, p)
		}
		logger.Debug().
			Str("file", path).
			Int("scenarios", len(filePlans)).
			Msg("suite file loaded")
	}
	return plans, errs
}

// LoadFile reads and compiles one suite file. Every problem is prefixed
// with the file path.
func LoadFile(path string, caps CapabilitySource) ([]*orchestrator.Plan, error) {
	plans, errs := loadFile(path, caps)
	return plans, stderrors.Join(errs...)
}

func loadFile(path string, caps CapabilitySource) ([]*orchestrator.Plan, []error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, []error{fmt.Errorf("%w: %s: %w", trellerrors.ErrSuiteLoadFailed, path, err)}
	}
	plans, errs := parse(data, caps)
	for i, err := range errs {
		errs[i] = fmt.Errorf("%w: %s: %w", trellerrors.ErrSuiteLoadFailed, path, err)
	}
	return plans, errs
}

// Parse decodes one suite document and compiles its scenarios. Unknown
// fields are rejected.
func Parse(data []byte, caps CapabilitySource) ([]*orchestrator.Plan, error) {
	plans, errs := parse(data, caps)
	return plans, stderrors.Join(errs...)
}

func parse(data []byte, caps CapabilitySource) ([]*orchestrator.Plan, []error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, []error{err}
	}

	var (
		plans []*orchestrator.Plan
		errs  []error
	)
	for _, doc := range f.Scenarios {
		plan, err := Compile(doc, caps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	return plans, errs
}

// Expand resolves patterns to a sorted, de-duplicated list of files per
// pattern, in pattern order. A literal path that does not exist is an error;
// a glob that matches nothing is not.
func Expand(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(matches []string) {
		slices.Sort(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			yamls, _ := filepath.Glob(filepath.Join(pattern, "*.yaml"))
			ymls, _ := filepath.Glob(filepath.Join(pattern, "*.yml"))
			add(append(yamls, ymls...))
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", trellerrors.ErrSuiteLoadFailed, pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, fmt.Errorf("%w: %s: %w", trellerrors.ErrSuiteLoadFailed, pattern, os.ErrNotExist)
		}
		add(matches)
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '\\':
			return true
		}
	}
	return false
}
