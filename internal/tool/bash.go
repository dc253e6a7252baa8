package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	bashDefaultTimeout = 2 * time.Minute
	bashMaxTimeout     = 10 * time.Minute
	bashMaxOutput      = 30000
)

// Bash runs shell commands in the working directory. Commands pass
// through the guard first; blocked ones fail without executing.
type Bash struct {
	workDir string
	guard   *Guard
}

func NewBash(workDir string) *Bash {
	return &Bash{workDir: workDir, guard: DefaultGuard}
}

func (b *Bash) Spec() Spec {
	return Spec{
		Name:        "bash",
		Description: "Execute a bash command and return its combined output.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The bash command to execute",
				},
				"timeout": map[string]any{
					"type":        "number",
					"description": "Timeout in milliseconds (max 600000)",
				},
			},
			"required": []string{"command"},
		},
	}
}

func (b *Bash) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}

	verdict := b.guard.Analyze(command)
	if verdict.Level == RiskBlocked {
		err := fmt.Errorf("command blocked: %s (try: %s)", verdict.Reason, verdict.Alternative)
		return &Result{
			Title:    commandTitle(command),
			Output:   err.Error(),
			Metadata: map[string]any{"command": command, "blocked": true},
			Error:    err,
		}, nil
	}

	timeout := bashDefaultTimeout
	if t, ok := args["timeout"].(float64); ok && t > 0 {
		timeout = time.Duration(t) * time.Millisecond
		if timeout > bashMaxTimeout {
			timeout = bashMaxTimeout
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = b.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}
	if len(output) > bashMaxOutput {
		output = output[:bashMaxOutput] + "\n... (output truncated)"
	}

	res := &Result{
		Title:  commandTitle(command),
		Output: output,
		Metadata: map[string]any{
			"command":  command,
			"exitCode": cmd.ProcessState.ExitCode(),
		},
	}
	if verdict.Level == RiskWarning {
		res.Metadata["warning"] = verdict.Reason
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.Output += "\n(command timed out)"
		}
		res.Error = err
	}
	return res, nil
}

func commandTitle(s string) string {
	s = strings.Split(s, "\n")[0]
	if len(s) > 50 {
		return s[:47] + "..."
	}
	return s
}

var _ Executor = (*Bash)(nil)
