package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"dockertester/internal/ui"
)

const (
	logFileName     = "dockertester.log"
	logDirEnv       = "DOCKERTESTER_LOG_DIR"
	maxLogSizeBytes = 10 * 1024 * 1024
	maxLogFiles     = 5
)

type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler() (*ErrorHandler, error) {
	logFile, err := createLogFile()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &ErrorHandler{
		logger:  logger,
		console: ui.NewConsole(),
	}, nil
}

func newConsoleOnlyHandler() *ErrorHandler {
	return &ErrorHandler{
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		console: ui.NewConsole(),
	}
}

// getOSStandardLogDir returns the OS-standard log directory path
func getOSStandardLogDir() (string, error) {
	if customLogDir := os.Getenv(logDirEnv); customLogDir != "" {
		return customLogDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "dockertester"), nil
	case "windows":
		if appDataDir := os.Getenv("LOCALAPPDATA"); appDataDir != "" {
			return filepath.Join(appDataDir, "dockertester", "logs"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "dockertester", "logs"), nil
	default:
		if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
			return filepath.Join(stateHome, "dockertester"), nil
		}
		return filepath.Join(homeDir, ".local", "state", "dockertester"), nil
	}
}

// createLogDirectoryWithFallback creates the log directory, falling back to the working directory
// when the standard one is not writable.
func createLogDirectoryWithFallback() (string, bool, error) {
	logDir, err := getOSStandardLogDir()
	if err == nil {
		if err = ensureWritableDir(logDir); err == nil {
			return logDir, false, nil
		}
	}

	currentDir, cwdErr := os.Getwd()
	if cwdErr != nil {
		return "", true, fmt.Errorf("cannot determine current directory for fallback logging: %w", cwdErr)
	}

	fmt.Fprintf(os.Stderr, "Warning: cannot use log directory %q: %v. Falling back to current directory for logging.\n", logDir, err)
	return currentDir, true, nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		slog.Warn("Failed to close write check file", "path", name, "error", err)
	}
	return os.Remove(name)
}

// rotateLogFile shifts log.N to log.N+1, dropping the oldest, and moves log to log.1.
func rotateLogFile(logPath string) error {
	oldest := fmt.Sprintf("%s.%d", logPath, maxLogFiles)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove old log file", "path", oldest, "error", err)
	}

	for i := maxLogFiles - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", logPath, i)
		if _, err := os.Stat(oldPath); err != nil {
			continue
		}
		newPath := fmt.Sprintf("%s.%d", logPath, i+1)
		if err := os.Rename(oldPath, newPath); err != nil {
			slog.Warn("Failed to rotate log file", "old", oldPath, "new", newPath, "error", err)
		}
	}

	if _, err := os.Stat(logPath); err == nil {
		return os.Rename(logPath, logPath+".1")
	}
	return nil
}

// checkLogRotation rotates logPath once it reaches maxLogSizeBytes.
func checkLogRotation(logPath string) error {
	info, err := os.Stat(logPath)
	if err != nil {
		return nil
	}
	if info.Size() >= maxLogSizeBytes {
		return rotateLogFile(logPath)
	}
	return nil
}

func createLogFile() (*os.File, error) {
	logDir, _, err := createLogDirectoryWithFallback()
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName)
	if err := checkLogRotation(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to rotate log file: %v\n", err)
	}

	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var dtErr *DockerTesterError
	if errors.As(err, &dtErr) {
		h.handleDockerTesterError(dtErr)
	} else {
		h.handleGenericError(err)
	}
}

func (h *ErrorHandler) handleDockerTesterError(err *DockerTesterError) {
	h.logStructuredError(err)

	message := h.console.FormatErrorMessage(err.Context, err.Cause, err.Suggestion)
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
	)

	h.console.PrintError(err.Error())
}

func (h *ErrorHandler) logStructuredError(err *DockerTesterError) {
	logAttrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("context", err.Context),
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "dockertester error occurred", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrDockerUnavailable:
		return "docker_unavailable"
	case ErrImagePullFailed:
		return "image_pull_failed"
	case ErrContainerStartFailed:
		return "container_start_failed"
	case ErrContainerStopFailed:
		return "container_stop_failed"
	case ErrPortMappingFailed:
		return "port_mapping_failed"
	case ErrDatabaseNotReady:
		return "database_not_ready"
	case ErrMigrationFailed:
		return "migration_failed"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrStateFailed:
		return "state_failed"
	default:
		return "unknown"
	}
}
