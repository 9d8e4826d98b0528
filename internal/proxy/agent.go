package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Agent is a successor agent running as a subprocess speaking ACP on its
// stdio. Its stderr is passed through to ours.
type Agent struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
}

// StartAgent launches argv[0] with the remaining arguments.
func StartAgent(ctx context.Context, argv []string, logger *zap.Logger) (*Agent, error) {
	if len(argv) == 0 {
		return nil, errors.New("no agent command given")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting agent %s: %w", argv[0], err)
	}
	logger.Info("agent started", zap.Strings("argv", argv), zap.Int("pid", cmd.Process.Pid))

	return &Agent{cmd: cmd, Stdin: stdin, Stdout: stdout}, nil
}

// Wait waits for the agent to exit.
func (a *Agent) Wait() error {
	if err := a.cmd.Wait(); err != nil {
		return fmt.Errorf("agent exited: %w", err)
	}
	return nil
}
