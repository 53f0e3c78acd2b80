package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written under the log directory.
const FileName = "jira-dashboard.log"

// Options controls logger construction.
type Options struct {
	Verbose bool
	// Dir receives the rotating log file; empty disables the file sink.
	Dir string
	// Console defaults to os.Stderr. Stdout is reserved for the MCP transport.
	Console io.Writer
}

// New builds a logger writing to the console and, when Dir is set, a rotating file.
func New(opts Options) (zerolog.Logger, error) {
	console := opts.Console
	noColor := true
	if console == nil {
		console = os.Stderr
		noColor = !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory %q: %w", opts.Dir, err)
		}
		// MkdirAll succeeds on read-only mounts too.
		probe := filepath.Join(opts.Dir, ".write-test")
		if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
			return zerolog.Nop(), fmt.Errorf("log directory %q is not writable: %w", opts.Dir, err)
		}
		_ = os.Remove(probe)

		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    16, // megabytes
			MaxBackups: 32,
			MaxAge:     365, // days
			Compress:   true,
		})
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// Init installs the global logger. It runs before config.Load, so the log directory is
// resolved from the environment the same way: LOGS_FOLDER, then DATA_PATH/logs, then
// logs/ next to the binary.
func Init(verbose bool) {
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		_ = godotenv.Load(filepath.Join(exeDir, ".env"))
	}

	logger, err := New(Options{Verbose: verbose, Dir: resolveDir(exeDir)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = logger
}

func resolveDir(exeDir string) string {
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if data := os.Getenv("DATA_PATH"); data != "" {
		return filepath.Join(data, "logs")
	}
	if exeDir != "" {
		return filepath.Join(exeDir, "logs")
	}
	return "logs"
}
