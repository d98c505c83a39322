package structures

import (
	"path/filepath"
	"time"
)

// DefaultMatchTolerance is the single source of truth for both media clustering
// and message/media timestamp matching.
const DefaultMatchTolerance = 60 * time.Second

const (
	PoolNamingDigest = "digest"
	PoolNamingName   = "name"
)

type CliFlags struct {
	ConfigPath   string
	DebugMode    bool
	ExportDir    string
	OutputDir    string
	NoHash       bool
	Compact      bool
	NoValidate   bool
	Workers      int
	KeepWorkDir  bool
	ValidateOnly bool
}

type InputConfig struct {
	ExportDir string `yaml:"exportDir" mapstructure:"exportDir" validate:"required"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir" validate:"required"`
	WorkDir     string `yaml:"workDir" mapstructure:"workDir"`
	KeepWorkDir bool   `yaml:"keepWorkDir" mapstructure:"keepWorkDir"`
	PoolNaming  string `yaml:"poolNaming" mapstructure:"poolNaming" validate:"required|in:digest,name"`
	Pretty      bool   `yaml:"pretty" mapstructure:"pretty"`
	Indent      int    `yaml:"indent" mapstructure:"indent" validate:"min:0|max:8"`
}

type MatchingConfig struct {
	Tolerance       time.Duration `yaml:"tolerance" mapstructure:"tolerance" validate:"required|min:1"`
	ClusterGap      time.Duration `yaml:"clusterGap" mapstructure:"clusterGap" validate:"required|min:1"`
	DateCorrelation bool          `yaml:"dateCorrelation" mapstructure:"dateCorrelation"`
}

type FusionConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	FFmpegPath string        `yaml:"ffmpegPath" mapstructure:"ffmpegPath"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"required|min:1"`
	Workers    int           `yaml:"workers" mapstructure:"workers" validate:"required|min:1"`
}

type IOConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"required|min:1"`
}

type ValidationConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

type LoggerConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" mapstructure:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Size    int  `yaml:"size" mapstructure:"size"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

type Config struct {
	AppName    string
	Debug      bool
	Path       string
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Fusion     FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	IO         IOConfig         `yaml:"io" mapstructure:"io"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Logger     LoggerConfig     `yaml:"logger" mapstructure:"logger"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// PoolDir is the working pool of fused and copied-through media.
func (c *Config) PoolDir() string {
	return filepath.Join(c.Output.WorkDir, "pool")
}
