// Package launcher starts and stops the external game-server processes that
// back playing rooms.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/lobby"
	"github.com/arcadelabs/arcade/internal/store"
)

const defaultGrace = 5 * time.Second

// Config configures a Launcher.
type Config struct {
	// Runner prefixes the launch command, e.g. ["python3"] to run script
	// artifacts. Empty runs the server file as the executable itself.
	Runner []string
	// Grace is how long Terminate waits after a graceful stop request
	// before forcing the kill. Defaults to 5s.
	Grace  time.Duration
	Logger *slog.Logger
}

// Launcher launches game-server artifacts from a library.
type Launcher struct {
	artifacts *artifact.Library
	runner    []string
	grace     time.Duration
	logger    *slog.Logger
}

var _ lobby.Launcher = (*Launcher)(nil)

func New(artifacts *artifact.Library, cfg Config) *Launcher {
	grace := cfg.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Launcher{
		artifacts: artifacts,
		runner:    cfg.Runner,
		grace:     grace,
		logger:    logger,
	}
}

// AllocatePort asks the OS for a free TCP port by binding a throwaway
// listener and closing it. The port can be taken again before the game
// server binds it; that race surfaces as a launch failure later, not here.
func (l *Launcher) AllocatePort() (int, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("probe free port: %w", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("close probe listener: %w", err)
	}

	return port, nil
}

// Launch starts the game's server artifact with the port as its argument,
// in the artifact's version directory. It returns as soon as the process is
// running; it does not wait for the child to bind its port.
func (l *Launcher) Launch(game store.Game, port int) (lobby.Process, error) {
	serverFile := game.ServerFile
	if serverFile == "" {
		return nil, fmt.Errorf("game %q has no server artifact", game.Name)
	}

	dir := l.artifacts.VersionDir(game.Name, game.Version)

	var name string
	var args []string
	if len(l.runner) > 0 {
		name = l.runner[0]
		args = append(slices.Clone(l.runner[1:]), serverFile)
	} else {
		name = filepath.Join(dir, serverFile)
	}
	args = append(args, strconv.Itoa(port))

	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	logger := l.logger.With("game", game.Name, "port", port)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start game server: %w", err)
	}

	logger = logger.With("pid", cmd.Process.Pid)
	logger.Info("game server launched")

	var outputDone sync.WaitGroup
	outputDone.Add(2)
	go func() {
		defer outputDone.Done()
		logLines(logger, slog.LevelInfo, stdout)
	}()
	go func() {
		defer outputDone.Done()
		logLines(logger, slog.LevelWarn, stderr)
	}()

	h := &Handle{
		pid:    cmd.Process.Pid,
		port:   port,
		cmd:    cmd,
		grace:  l.grace,
		logger: logger,
		done:   make(chan struct{}),
	}

	go func() {
		outputDone.Wait()
		err := cmd.Wait()
		logger.Info("game server exited", "error", err)
		close(h.done)
	}()

	return h, nil
}

// logLines forwards the child's output into the lobby log, one line per
// record.
func logLines(logger *slog.Logger, level slog.Level, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Log(context.Background(), level, scanner.Text())
	}
}

// Handle is a running game-server process.
type Handle struct {
	pid    int
	port   int
	cmd    *exec.Cmd
	grace  time.Duration
	logger *slog.Logger

	done      chan struct{} // closed when the process has been reaped
	terminate sync.Once
}

func (h *Handle) PID() int { return h.pid }

// Port returns the port the server was told to bind.
func (h *Handle) Port() int { return h.port }

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Terminate asks the process to stop, waits the grace period, then kills
// it. Idempotent; on an already-dead process it returns immediately.
func (h *Handle) Terminate() {
	h.terminate.Do(h.doTerminate)
	<-h.done
}

func (h *Handle) doTerminate() {
	select {
	case <-h.done:
		return
	default:
	}

	h.logger.Info("terminating game server")

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Signalling failed (already gone, or unsupported); go straight
		// to the kill.
		h.kill()
		return
	}

	select {
	case <-h.done:
	case <-time.After(h.grace):
		h.logger.Warn("game server ignored graceful stop, killing")
		h.kill()
	}
}

func (h *Handle) kill() {
	if err := h.cmd.Process.Kill(); err != nil {
		h.logger.Debug("kill game server", "error", err)
	}
	<-h.done
}
