package handler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/oriys/photon/internal/runtimeapi"
	"github.com/oriys/photon/internal/spec"
)

// oneshot spawns one handler process per invocation: payload on stdin,
// response on stdout, stderr passed through to the runtime log.
type oneshot struct {
	manifest *spec.Manifest
}

func (h *oneshot) Invoke(ctx context.Context, inv *runtimeapi.InvocationRequest) ([]byte, error) {
	cmd := exec.CommandContext(ctx, h.manifest.Command, h.manifest.Args...)
	cmd.Dir = h.manifest.WorkDir
	cmd.Env = buildEnv(h.manifest, inv)
	cmd.Stdin = bytes.NewReader(inv.Content)
	cmd.Stderr = os.Stderr
	setProcAttr(cmd)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &InvokeError{Type: ErrTypeTimeout, Message: "invocation deadline exceeded"}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &InvokeError{Type: ErrTypeExit, Message: exitErr.String()}
		}
		return nil, &InvokeError{Type: ErrTypeHandler, Message: err.Error()}
	}

	return stdout.Bytes(), nil
}

func (h *oneshot) Close() error {
	return nil
}
