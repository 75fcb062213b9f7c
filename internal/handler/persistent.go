package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/oriys/photon/internal/runtimeapi"
	"github.com/oriys/photon/internal/spec"
)

// persistent keeps one long-lived handler process and exchanges framed
// payloads over its stdin/stdout. A broken process is killed and respawned
// on the next invocation; the in-flight invocation fails.
type persistent struct {
	manifest *spec.Manifest

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func newPersistent(m *spec.Manifest) (*persistent, error) {
	p := &persistent{manifest: m}
	if err := p.start(); err != nil {
		return nil, &InvokeError{Type: ErrTypeInit, Message: err.Error()}
	}
	return p, nil
}

func (p *persistent) start() error {
	cmd := exec.Command(p.manifest.Command, p.manifest.Args...)
	cmd.Dir = p.manifest.WorkDir
	cmd.Env = buildEnv(p.manifest, nil)
	cmd.Stderr = os.Stderr
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open handler stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open handler stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start handler %s: %w", p.manifest.Command, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	return nil
}

func (p *persistent) stopLocked() {
	if p.cmd == nil {
		return
	}
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
}

func (p *persistent) Invoke(ctx context.Context, inv *runtimeapi.InvocationRequest) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		if err := p.start(); err != nil {
			return nil, &InvokeError{Type: ErrTypeHandler, Message: "handler restart failed: " + err.Error()}
		}
	}

	if err := writeFrame(p.stdin, frameStatusOK, inv.Content); err != nil {
		p.stopLocked()
		return nil, &InvokeError{Type: ErrTypeHandler, Message: "write to handler: " + err.Error()}
	}

	type frame struct {
		status  byte
		payload []byte
		err     error
	}
	frameCh := make(chan frame, 1)
	go func() {
		status, payload, err := readFrame(p.stdout)
		frameCh <- frame{status: status, payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		// The process may be wedged mid-frame; kill it so the reader
		// goroutine unblocks and the next invocation gets a fresh one.
		p.stopLocked()
		return nil, &InvokeError{Type: ErrTypeTimeout, Message: "invocation deadline exceeded"}
	case f := <-frameCh:
		if f.err != nil {
			p.stopLocked()
			return nil, &InvokeError{Type: ErrTypeHandler, Message: "read from handler: " + f.err.Error()}
		}
		if f.status == frameStatusError {
			return nil, &InvokeError{Type: ErrTypeHandler, Message: string(f.payload)}
		}
		return f.payload, nil
	}
}

func (p *persistent) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}
