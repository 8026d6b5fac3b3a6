// Package transform is the external text-transform collaborator the
// transcription pipeline composes with downloading. The production
// implementation shells out to a configured program; tests inject a Func.
package transform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when no transform command is configured.
var ErrNoCommand = errors.New("no transform command configured")

// Placeholders substituted into the configured command's arguments.
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

// Transformer turns a downloaded media file into its final artifact, e.g. a
// transcript. Implementations must honor ctx cancellation.
type Transformer interface {
	Transform(ctx context.Context, inputPath, outputPath string) error
}

// Func adapts a function to the Transformer interface.
type Func func(ctx context.Context, inputPath, outputPath string) error

func (f Func) Transform(ctx context.Context, inputPath, outputPath string) error {
	return f(ctx, inputPath, outputPath)
}

// CommandTransformer runs a configured external program. {input} and
// {output} in the argument list are replaced with the actual paths; when
// neither placeholder appears, both paths are appended as trailing
// arguments.
type CommandTransformer struct {
	Command []string
}

func NewCommandTransformer(command []string) *CommandTransformer {
	return &CommandTransformer{Command: command}
}

func (t *CommandTransformer) Transform(ctx context.Context, inputPath, outputPath string) error {
	if len(t.Command) == 0 {
		return ErrNoCommand
	}

	args := make([]string, 0, len(t.Command)-1)
	substituted := false
	for _, a := range t.Command[1:] {
		if strings.Contains(a, InputPlaceholder) || strings.Contains(a, OutputPlaceholder) {
			substituted = true
		}
		a = strings.ReplaceAll(a, InputPlaceholder, inputPath)
		a = strings.ReplaceAll(a, OutputPlaceholder, outputPath)
		args = append(args, a)
	}
	if !substituted {
		args = append(args, inputPath, outputPath)
	}

	cmd := exec.CommandContext(ctx, t.Command[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("transform command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("transform command failed: %w", err)
	}
	return nil
}
