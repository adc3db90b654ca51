package probe

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// Runner executes an external command and returns its standard output.
//
// Implementations return the output read so far along with any error, some
// tools (smartctl) exit non zero while printing a usable report.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg += ": " + string(bytes.TrimSpace(stderr.Bytes()))
		}

		return stdout.Bytes(), errors.New(name + ": " + msg)
	}

	return stdout.Bytes(), nil
}
