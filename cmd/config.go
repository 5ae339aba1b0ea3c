package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/domain"
	"mender.dev/pkg/mender/internal/domain/ranking"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "mender"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	excludeFlagName       = "exclude"
	stateDirFlagName      = "state-dir"
	verboseFlagName       = "verbose"
	runParallelFlagName   = "parallel"
	maxIterationsFlagName = "max-iterations"
	minScoreFlagName      = "min-score"
	typeCheckFlagName     = "type-check"
	patternFlagName       = "pattern"
	dryRunFlagName        = "dry-run"
	reportFlagName        = "report"
	metricsFileFlagName   = "metrics-file"
	diffFlagName          = "diff"

	runParallelConfigKey   = "run.parallel"
	maxIterationsConfigKey = "run.max_iterations"
	minScoreConfigKey      = "run.min_score"
	typeCheckConfigKey     = "run.type_check"
	fileTimeoutConfigKey   = "run.file_timeout"

	parserModeKey              = "parser.mode"
	parserNodeKey              = "parser.node"
	parserNodeScriptKey        = "parser.node_script"
	parserTSCCommandKey        = "parser.tsc_command"
	parserStructuralTimeoutKey = "parser.structural_timeout"
	parserTypeTimeoutKey       = "parser.type_timeout"

	patternsConfigKey = "paths.patterns"
	excludeConfigKey  = "paths.exclude"

	stateDirConfigKey   = "learn.state_dir"
	flushEveryConfigKey = "learn.flush_every"

	confidenceWeightKey = "ranking.confidence_weight"
	contextWeightKey    = "ranking.context_weight"
	frameworkWeightKey  = "ranking.framework_weight"
	testTypeWeightKey   = "ranking.test_type_weight"
	patternWeightKey    = "ranking.pattern_weight"
	importWeightKey     = "ranking.import_weight"

	metricsFileConfigKey = "metrics.textfile"

	parserModeTreeSitter = "treesitter"
	parserModeNode       = "node"

	defaultRunParallel   = 1
	defaultMinScore      = 0.0
	defaultTypeCheck     = false
	defaultStateDir      = ".mender"
	defaultTSCCommand    = "npx tsc"
	defaultFileTimeout   = domain.DefaultFileTimeout
	defaultMaxIterations = domain.DefaultMaxIterations

	envPrefix = "MENDER"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".mender.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(maxIterationsConfigKey, defaultMaxIterations)
	viper.SetDefault(minScoreConfigKey, defaultMinScore)
	viper.SetDefault(typeCheckConfigKey, defaultTypeCheck)
	viper.SetDefault(fileTimeoutConfigKey, int64(defaultFileTimeout.Seconds()))

	viper.SetDefault(parserModeKey, parserModeTreeSitter)
	viper.SetDefault(parserNodeKey, "node")
	viper.SetDefault(parserNodeScriptKey, "")
	viper.SetDefault(parserTSCCommandKey, defaultTSCCommand)
	viper.SetDefault(parserStructuralTimeoutKey, int64(adapter.DefaultStructuralTimeout.Seconds()))
	viper.SetDefault(parserTypeTimeoutKey, int64(adapter.DefaultTypeTimeout.Seconds()))

	viper.SetDefault(patternsConfigKey, adapter.DefaultTestPatterns)
	viper.SetDefault(excludeConfigKey, []string{})

	viper.SetDefault(stateDirConfigKey, defaultStateDir)
	viper.SetDefault(flushEveryConfigKey, ranking.DefaultFlushEvery)

	weights := ranking.DefaultWeights()
	viper.SetDefault(confidenceWeightKey, weights.Confidence)
	viper.SetDefault(contextWeightKey, weights.Context)
	viper.SetDefault(frameworkWeightKey, weights.Framework)
	viper.SetDefault(testTypeWeightKey, weights.TestType)
	viper.SetDefault(patternWeightKey, weights.Pattern)
	viper.SetDefault(importWeightKey, weights.Import)

	viper.SetDefault(metricsFileConfigKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// rankingWeights reads the ranking coefficients from config.
func rankingWeights() ranking.Weights {
	return ranking.Weights{
		Confidence: viper.GetFloat64(confidenceWeightKey),
		Context:    viper.GetFloat64(contextWeightKey),
		Framework:  viper.GetFloat64(frameworkWeightKey),
		TestType:   viper.GetFloat64(testTypeWeightKey),
		Pattern:    viper.GetFloat64(patternWeightKey),
		Import:     viper.GetFloat64(importWeightKey),
	}
}

func secondsKey(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Second
}
