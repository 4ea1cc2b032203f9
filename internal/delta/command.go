package delta

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// CommandService runs an external delta tool as the Service implementation.
// The command template names the tool and its argument order with the
// placeholders {original}, {patch} and {output}, e.g.
//
//	octodiff patch {original} {patch} {output}
//
// The tool's own checksum verification stays enabled; no skip flag is passed.
type CommandService struct {
	template []string
}

func NewCommandService(command string) (*CommandService, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty delta command")
	}
	return &CommandService{template: parts}, nil
}

// Apply stages the original and patch into scratch files, runs the tool, and
// streams the reconstructed output back. Progress is reported in terms of
// patch bytes: zero up front and the full size on completion, since an
// external tool's consumption cannot be observed mid-run.
func (s *CommandService) Apply(ctx context.Context, original io.ReadSeeker, patch io.Reader, out io.Writer, report func(consumed, total int64)) error {
	dir, err := os.MkdirTemp("", "delta-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	originalPath := dir + string(os.PathSeparator) + "original"
	patchPath := dir + string(os.PathSeparator) + "patch"
	outputPath := dir + string(os.PathSeparator) + "output"

	if err := stage(originalPath, original); err != nil {
		return err
	}
	patchSize, err := stageSized(patchPath, patch)
	if err != nil {
		return err
	}

	if report != nil {
		report(0, patchSize)
	}

	argv := make([]string, 0, len(s.template))
	for _, a := range s.template {
		switch a {
		case "{original}":
			a = originalPath
		case "{patch}":
			a = patchPath
		case "{output}":
			a = outputPath
		}
		argv = append(argv, a)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("delta tool: %w: %s", err, strings.TrimSpace(string(output)))
	}

	produced, err := os.Open(outputPath)
	if err != nil {
		return err
	}
	defer produced.Close()

	if _, err := io.Copy(out, produced); err != nil {
		return err
	}

	if report != nil {
		report(patchSize, patchSize)
	}
	return nil
}

func stage(path string, r io.Reader) error {
	_, err := stageSized(path, r)
	return err
}

func stageSized(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
