// Package shelltool implements the "shell.run" tool: subprocess execution
// with captured output and process-group termination. On context
// cancellation the process group gets SIGTERM first, then SIGKILL after the
// grace period.
package shelltool

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	apperrors "github.com/dwasnwk/oktyv/errors"
	"github.com/dwasnwk/oktyv/tool"
)

// Name is the registry name of this tool.
const Name = "shell.run"

// Config configures the shell tool.
type Config struct {
	// Enabled gates the tool entirely; subprocess execution is opt-in.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// GracePeriod is how long to wait after SIGTERM before SIGKILL, in
	// seconds. Defaults to 5.
	GracePeriod int `yaml:"grace_period" mapstructure:"grace_period"`
}

// ShellTool runs subprocesses on behalf of tasks.
type ShellTool struct {
	cfg Config
}

// New creates the shell tool.
func New(cfg Config) *ShellTool {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5
	}
	return &ShellTool{cfg: cfg}
}

func (t *ShellTool) Name() string { return Name }

func (t *ShellTool) IsAvailable(_ context.Context) bool { return t.cfg.Enabled }

// Invoke runs a subprocess. Parameters: binary (required), args (array of
// strings), dir, env (object of key=value pairs), stdin. The result is
// {exitCode, stdout, stderr, duration}.
func (t *ShellTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	binary, err := tool.StringParam(params, "binary")
	if err != nil {
		return nil, err
	}
	args, err := tool.OptStringSliceParam(params, "args")
	if err != nil {
		return nil, err
	}
	dir, err := tool.OptStringParam(params, "dir", "")
	if err != nil {
		return nil, err
	}
	stdin, err := tool.OptStringParam(params, "stdin", "")
	if err != nil {
		return nil, err
	}
	env, err := tool.OptMapParam(params, "env")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // running caller-supplied commands is the purpose of this tool
	cmd.Dir = dir
	cmd.Env = mergeEnv(env)
	if stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(stdin))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Process group so the whole tree can be signalled.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = time.Duration(t.cfg.GracePeriod) * time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := map[string]any{
		"exitCode": cmd.ProcessState.ExitCode(),
		"stdout":   stdout.String(),
		"stderr":   stderr.String(),
		"duration": duration.Milliseconds(),
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return result, apperrors.Timeout("shell.run").WithCause(ctx.Err())
		}
		return result, apperrors.ToolFailed(Name, runErr)
	}
	return result, nil
}

func mergeEnv(extra map[string]any) []string {
	if len(extra) == 0 {
		return nil // inherit parent env
	}
	env := os.Environ()
	for key, value := range extra {
		if s, ok := value.(string); ok {
			env = append(env, key+"="+s)
		}
	}
	return env
}
