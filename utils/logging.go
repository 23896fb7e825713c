package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ethpandaops/tokengate/types"
)

// InitLogger configures the standard logrus logger from the logging config.
// When a file path is set, entries up to the file level are additionally written to a rotated log file.
func InitLogger(cfg *types.Config) error {
	outputLevel := logrus.InfoLevel
	if cfg.Logging.OutputLevel != "" {
		level, err := logrus.ParseLevel(cfg.Logging.OutputLevel)
		if err != nil {
			return fmt.Errorf("invalid output log level %v: %w", cfg.Logging.OutputLevel, err)
		}
		outputLevel = level
	}

	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if cfg.Logging.OutputJson {
		formatter = &logrus.JSONFormatter{}
	}

	logger := logrus.StandardLogger()
	logger.SetFormatter(formatter)
	logger.SetLevel(outputLevel)
	if cfg.Logging.OutputStderr {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	if cfg.Logging.FilePath == "" {
		return nil
	}

	fileLevel := outputLevel
	if cfg.Logging.FileLevel != "" {
		level, err := logrus.ParseLevel(cfg.Logging.FileLevel)
		if err != nil {
			return fmt.Errorf("invalid file log level %v: %w", cfg.Logging.FileLevel, err)
		}
		fileLevel = level
	}

	maxSize := cfg.Logging.FileMaxSize
	if maxSize == 0 {
		maxSize = 100
	}

	logger.AddHook(&writerHook{
		writer: &lumberjack.Logger{
			Filename:   cfg.Logging.FilePath,
			MaxSize:    maxSize,
			MaxBackups: cfg.Logging.FileMaxBackups,
		},
		formatter: &logrus.JSONFormatter{},
		level:     fileLevel,
	})

	if fileLevel > outputLevel {
		// console output moves into a hook so it keeps its own level
		logger.AddHook(&writerHook{
			writer:    logger.Out,
			formatter: formatter,
			level:     outputLevel,
		})
		logger.SetOutput(io.Discard)
		logger.SetLevel(fileLevel)
	}

	return nil
}

type writerHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	level     logrus.Level
}

func (hook *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels[:hook.level+1]
}

func (hook *writerHook) Fire(entry *logrus.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = hook.writer.Write(line)
	return err
}

// LogFatal logs a fatal error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogFatal is called.
func LogFatal(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Fatal(errorMsg)
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logrus.Entry {
	logFields := logrus.NewEntry(logrus.StandardLogger())

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logrus.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	// flatten the wrap chain into errInfo_N fields
	errColl := []string{}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		errColl = append(errColl, cur.Error())
		err = cur
	}
	for idx := 0; idx < len(errColl)-1; idx++ {
		msg := strings.TrimSuffix(errColl[idx], errColl[idx+1])
		msg = strings.TrimSuffix(strings.TrimSpace(msg), ":")
		logFields = logFields.WithField(fmt.Sprintf("errInfo_%v", idx), msg)
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
