package config

import (
	"time"
)

// DefaultFileName is the config file looked up in the project root.
const DefaultFileName = "handbook.toml"

type Config struct {
	Version       int                 `toml:"version"`
	Paths         Paths               `toml:"paths"`
	Roots         []string            `toml:"roots"`
	Macro         Macro               `toml:"macro"`
	Resolve       Resolve             `toml:"resolve"`
	Languages     map[string]Language `toml:"languages"`
	Exclude       Exclude             `toml:"exclude"`
	Watch         Watch               `toml:"watch"`
	Output        Output              `toml:"output"`
	Cache         Cache               `toml:"cache"`
	Workers       int                 `toml:"workers"`
	Observability Observability       `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	CacheDir    string `toml:"cache_dir"`
}

// Macro names the import that marks a call as a source macro.
type Macro struct {
	Package      string `toml:"package"`
	Export       string `toml:"export"`
	RawDirective string `toml:"raw_directive"`
}

type Resolve struct {
	ContentDir        string   `toml:"content_dir"`
	Extensions        []string `toml:"extensions"`
	DefaultExtension  string   `toml:"default_extension"`
	ExtensionOverride string   `toml:"extension_override"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// Output modes.
const (
	OutputDir     = "dir"
	OutputInPlace = "inplace"
	OutputStdout  = "stdout"
	OutputNone    = "none"
)

type Output struct {
	Mode string `toml:"mode"`
	Dir  string `toml:"dir"`
	TSV  string `toml:"tsv"`
}

type Cache struct {
	Enabled     *bool         `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

func (c Cache) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type Observability struct {
	Enabled        bool    `toml:"enabled"`
	Address        string  `toml:"address"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
	Burst          int     `toml:"burst"`
	EnableTracing  bool    `toml:"enable_tracing"`
	OTLPEndpoint   string  `toml:"otlp_endpoint"`
	OTLPInsecure   bool    `toml:"otlp_insecure"`
	SampleRatio    float64 `toml:"sample_ratio"`
}
