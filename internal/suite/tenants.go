package suite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/tenant"
)

// maxConcurrentTenantReads bounds parallel tenant file reads.
const maxConcurrentTenantReads = 16

// envRef matches ${NAME} references in tenant files. Bare $NAME is left
// alone so passwords may contain dollar signs.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// tenantExtensions maps accepted tenant file extensions to viper config types.
//
//nolint:gochecknoglobals // fixed lookup table
var tenantExtensions = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

// LoadTenants reads every tenant file in dir concurrently and returns a
// registry of them. A file without an id takes its file name as the id.
func LoadTenants(ctx context.Context, dir string) (*tenant.Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read tenants directory: %w", trellerrors.ErrInvalidTenant, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := tenantExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)

	configs := make([]*tenant.Config, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTenantReads)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg, err := LoadTenantFile(path)
			if err != nil {
				return err
			}
			configs[i] = cfg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	registry, err := tenant.NewRegistry(configs...)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("component", "suite").
		Str("dir", dir).
		Strs("tenants", registry.IDs()).
		Msg("tenants loaded")
	return registry, nil
}

// LoadTenantFile reads one YAML or JSON tenant file, expanding ${NAME}
// environment references first. An unset variable is an error so a missing
// secret never becomes an empty password.
func LoadTenantFile(path string) (*tenant.Config, error) {
	configType, ok := tenantExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported file type", trellerrors.ErrInvalidTenant, path)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the tenants directory
	if err != nil {
		return nil, fmt.Errorf("%w: %w", trellerrors.ErrInvalidTenant, err)
	}
	expanded, err := expandEnv(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", trellerrors.ErrInvalidTenant, path, err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", trellerrors.ErrInvalidTenant, path, err)
	}
	var cfg tenant.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", trellerrors.ErrInvalidTenant, path, err)
	}
	if cfg.ID == "" {
		cfg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, trellerrors.Wrap(err, path)
	}
	return &cfg, nil
}

func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(envRef.FindSubmatch(m)[1])
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return []byte(val)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: environment variable %s is not set", trellerrors.ErrEmptyValue, strings.Join(missing, ", "))
	}
	return out, nil
}
