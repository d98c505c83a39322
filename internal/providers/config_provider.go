package providers

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/spf13/viper"
)

const AppName = "snapdays"

func DefaultFusionWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

func DefaultIOWorkers() int {
	return min(runtime.NumCPU()*2, 32)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.poolNaming", structures.PoolNamingDigest)
	v.SetDefault("output.pretty", true)
	v.SetDefault("output.indent", 2)
	v.SetDefault("matching.tolerance", structures.DefaultMatchTolerance)
	v.SetDefault("matching.clusterGap", structures.DefaultMatchTolerance)
	v.SetDefault("matching.dateCorrelation", true)
	v.SetDefault("fusion.enabled", true)
	v.SetDefault("fusion.ffmpegPath", "ffmpeg")
	v.SetDefault("fusion.timeout", "5m")
	v.SetDefault("fusion.workers", DefaultFusionWorkers())
	v.SetDefault("io.workers", DefaultIOWorkers())
	v.SetDefault("validation.enabled", true)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", 0644)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 16)
	v.SetDefault("metrics.enabled", false)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	setDefaults(v)

	v.BindEnv("input.exportDir", "SNAPDAYS_INPUT")
	v.BindEnv("output.dir", "SNAPDAYS_OUTPUT")
	v.BindEnv("logger.level", "SNAPDAYS_LOG_LEVEL")
	v.BindEnv("matching.tolerance", "SNAPDAYS_MATCH_TOLERANCE")
	v.BindEnv("fusion.workers", "SNAPDAYS_FUSION_WORKERS")
	v.BindEnv("io.workers", "SNAPDAYS_IO_WORKERS")
	v.BindEnv("output.poolNaming", "SNAPDAYS_POOL_NAMING")
	v.BindEnv("validation.enabled", "SNAPDAYS_VALIDATE")
	v.BindEnv("metrics.enabled", "SNAPDAYS_METRICS")

	if flags.ConfigPath != "" {
		filename := filepath.Base(flags.ConfigPath)
		v.AddConfigPath(filepath.Dir(flags.ConfigPath))
		v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	applyFlags(v, flags)

	err := v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if conf.Output.WorkDir == "" && conf.Output.Dir != "" {
		conf.Output.WorkDir = filepath.Join(conf.Output.Dir, ".work")
	}
	if conf.Metrics.Textfile == "" && conf.Output.Dir != "" {
		conf.Metrics.Textfile = filepath.Join(conf.Output.Dir, "metrics.prom")
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

// applyFlags lets explicit command line values win over file and env.
func applyFlags(v *viper.Viper, flags *structures.CliFlags) {
	if flags.ExportDir != "" {
		v.Set("input.exportDir", flags.ExportDir)
	}
	if flags.OutputDir != "" {
		v.Set("output.dir", flags.OutputDir)
	}
	if flags.NoHash {
		v.Set("output.poolNaming", structures.PoolNamingName)
	}
	if flags.Compact {
		v.Set("output.pretty", false)
	}
	if flags.NoValidate {
		v.Set("validation.enabled", false)
	}
	if flags.Workers > 0 {
		v.Set("io.workers", flags.Workers)
	}
	if flags.KeepWorkDir {
		v.Set("output.keepWorkDir", true)
	}
	if flags.ValidateOnly && v.GetString("input.exportDir") == "" {
		// validate only needs the output tree
		v.Set("input.exportDir", "-")
	}
	if flags.DebugMode {
		v.Set("logger.level", "debug")
	}
}
