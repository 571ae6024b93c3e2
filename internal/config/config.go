// Package config resolves valuegen settings from built-in defaults, an
// optional YAML file and VALUEGEN_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"valuegen/internal/adapters/dump"
	"valuegen/internal/blob"
	"valuegen/internal/core"
	"valuegen/internal/graph"
	"valuegen/internal/infra/persistence/sqlite"
	"valuegen/pkg/domain"
)

// Environment variables consulted by Load.
const (
	EnvLogLevel      = "VALUEGEN_LOG_LEVEL"
	EnvLogFormat     = "VALUEGEN_LOG_FORMAT"
	EnvStorageDriver = "VALUEGEN_STORAGE_DRIVER"
	EnvSQLitePath    = "VALUEGEN_SQLITE_PATH"
	EnvPostgresDSN   = "VALUEGEN_POSTGRES_DSN"
	EnvBlobDriver    = "VALUEGEN_BLOB_DRIVER"
	EnvBlobFSRoot    = "VALUEGEN_BLOB_FS_ROOT"
	EnvS3Bucket      = "VALUEGEN_BLOB_S3_BUCKET"
	EnvS3Region      = "VALUEGEN_BLOB_S3_REGION"
	EnvS3Endpoint    = "VALUEGEN_BLOB_S3_ENDPOINT"
	EnvS3PathStyle   = "VALUEGEN_BLOB_S3_PATH_STYLE"
	EnvS3AccessKey   = "VALUEGEN_BLOB_S3_ACCESS_KEY_ID"
	EnvS3SecretKey   = "VALUEGEN_BLOB_S3_SECRET_ACCESS_KEY"
	EnvOutputValues  = "VALUEGEN_OUTPUT_VALUES"
	EnvOutputMissing = "VALUEGEN_OUTPUT_UNRESOLVED"
	EnvHints         = "VALUEGEN_HINTS"
)

// Log formats accepted by Log.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the resolved settings tree.
type Config struct {
	Log     Log     `yaml:"log"`
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Output  Output  `yaml:"output"`
	Hints   bool    `yaml:"hints"`
	Policy  Policy  `yaml:"policy"`
}

// Log selects the zap level and encoder.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage selects the run repository.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects where dumps are read from and documents written to.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the s3 blob driver.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Output names the document keys the exporter writes.
type Output struct {
	Values     string `yaml:"values"`
	Unresolved string `yaml:"unresolved"`
}

// Policy overrides the recipe filter. Empty lists keep the defaults.
type Policy struct {
	ExcludedTypes          []string `yaml:"excluded_types"`
	ExcludedTypeNamespaces []string `yaml:"excluded_type_namespaces"`
	TagType                string   `yaml:"tag_type"`
	ExcludedTags           []string `yaml:"excluded_tags"`
	EmptyItem              string   `yaml:"empty_item"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Log: Log{Level: "info", Format: FormatConsole},
		Storage: Storage{
			Driver:     string(core.StorageSQLite),
			SQLitePath: sqlite.DefaultPath,
		},
		Blob: Blob{
			Driver: string(blob.DriverFilesystem),
			FSRoot: ".",
			S3:     S3{Region: "us-east-1"},
		},
		Output: Output{
			Values:     dump.DefaultValuesKey,
			Unresolved: dump.DefaultUnresolvedKey,
		},
	}
}

// Load resolves the configuration. An empty path skips the YAML file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvLogLevel:      &cfg.Log.Level,
		EnvLogFormat:     &cfg.Log.Format,
		EnvStorageDriver: &cfg.Storage.Driver,
		EnvSQLitePath:    &cfg.Storage.SQLitePath,
		EnvPostgresDSN:   &cfg.Storage.PostgresDSN,
		EnvBlobDriver:    &cfg.Blob.Driver,
		EnvBlobFSRoot:    &cfg.Blob.FSRoot,
		EnvS3Bucket:      &cfg.Blob.S3.Bucket,
		EnvS3Region:      &cfg.Blob.S3.Region,
		EnvS3Endpoint:    &cfg.Blob.S3.Endpoint,
		EnvS3AccessKey:   &cfg.Blob.S3.AccessKeyID,
		EnvS3SecretKey:   &cfg.Blob.S3.SecretAccessKey,
		EnvOutputValues:  &cfg.Output.Values,
		EnvOutputMissing: &cfg.Output.Unresolved,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	bools := map[string]*bool{
		EnvS3PathStyle: &cfg.Blob.S3.PathStyle,
		EnvHints:       &cfg.Hints,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate rejects unknown drivers and log settings as well as malformed policy ids.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 blob driver needs a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if _, err := c.GraphPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StorageConfig converts the storage section for core.OpenRepository.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig converts the blob section for blob.Open.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}

// OutputKeys converts the output section for the exporter.
func (c Config) OutputKeys() dump.Keys {
	return dump.Keys{Values: c.Output.Values, Unresolved: c.Output.Unresolved}
}

// GraphPolicy overlays the policy section on graph.DefaultPolicy.
func (c Config) GraphPolicy() (graph.Policy, error) {
	p := graph.DefaultPolicy()
	var err error
	if len(c.Policy.ExcludedTypes) > 0 {
		if p.ExcludedTypes, err = parseIDs("policy.excluded_types", c.Policy.ExcludedTypes); err != nil {
			return graph.Policy{}, err
		}
	}
	if len(c.Policy.ExcludedTypeNamespaces) > 0 {
		p.ExcludedTypeNamespaces = append([]string(nil), c.Policy.ExcludedTypeNamespaces...)
	}
	if c.Policy.TagType != "" {
		if p.TagType, err = parseID("policy.tag_type", c.Policy.TagType); err != nil {
			return graph.Policy{}, err
		}
	}
	if len(c.Policy.ExcludedTags) > 0 {
		if p.ExcludedTags, err = parseIDs("policy.excluded_tags", c.Policy.ExcludedTags); err != nil {
			return graph.Policy{}, err
		}
	}
	if c.Policy.EmptyItem != "" {
		if p.EmptyItem, err = parseID("policy.empty_item", c.Policy.EmptyItem); err != nil {
			return graph.Policy{}, err
		}
	}
	return p, nil
}

func parseID(field, raw string) (domain.Identifier, error) {
	id, err := domain.ParseIdentifier(raw)
	if err != nil {
		return domain.Identifier{}, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

func parseIDs(field string, raw []string) ([]domain.Identifier, error) {
	out := make([]domain.Identifier, 0, len(raw))
	for _, s := range raw {
		id, err := parseID(field, s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
