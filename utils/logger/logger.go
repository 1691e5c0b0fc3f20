package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger zerolog.Logger
	// stdout is reserved for protocol messages; every write goes through outMu
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
)

func init() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// Init configures the console writer on stderr and, unless saving is disabled,
// a rotating log file inside the config folder
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(constants.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}
	if folder := viper.GetString(constants.ConfigFolder); folder != "" && !viper.GetBool(constants.NoSave) {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(folder, "logs", "sync.log"),
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// SetOutput replaces the protocol message writer
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	stdout = w
}

func Info(v ...any) {
	logger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

func Debug(v ...any) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

func Warn(v ...any) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	logger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	logger.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	logger.Fatal().Msgf(format, v...)
}

// LogMessage prints one protocol message as a JSON line on stdout
func LogMessage(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %s", err)
	}

	outMu.Lock()
	defer outMu.Unlock()
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

// LogState persists the latest checkpoint to the configured state file
func LogState(state any) {
	path := viper.GetString(constants.StatePath)
	if path == "" || path == os.DevNull || viper.GetBool(constants.NoSave) {
		return
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		Errorf("failed to marshal state: %s", err)
		return
	}

	if err := writeFile(path, data); err != nil {
		Errorf("failed to persist state file[%s]: %s", path, err)
	}
}

// FileLogger writes content as JSON into the config folder and prints it on stdout
func FileLogger(content any, fileName, fileExtension string) {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		Errorf("failed to marshal %s: %s", fileName, err)
		return
	}

	if folder := viper.GetString(constants.ConfigFolder); folder != "" && !viper.GetBool(constants.NoSave) {
		path := filepath.Join(folder, fileName+fileExtension)
		if err := writeFile(path, data); err != nil {
			Errorf("failed to write %s: %s", path, err)
		}
	}

	if err := LogMessage(content); err != nil {
		Errorf("failed to print %s: %s", fileName, err)
	}
}

// writeFile replaces path atomically so a crash never leaves a torn state file
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
