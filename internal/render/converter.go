package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
)

// Converter turns a rendered HTML document into a PDF file at dst.
type Converter interface {
	Convert(ctx context.Context, html []byte, dst string) error
}

// CommandConverter pipes HTML into an external converter that accepts
// "-" for stdin followed by the output path, as weasyprint and wkhtmltopdf
// both do.
type CommandConverter struct {
	Path string
	Args []string
}

// knownConverters is searched in order by DetectConverter.
var knownConverters = []struct {
	name string
	args []string
}{
	{name: "weasyprint", args: []string{"--quiet"}},
	{name: "wkhtmltopdf", args: []string{"--quiet", "--encoding", "utf-8"}},
}

// DetectConverter returns a converter for the first known tool on PATH.
func DetectConverter() (*CommandConverter, error) {
	var tried []string
	for _, c := range knownConverters {
		if p, err := exec.LookPath(c.name); err == nil {
			return &CommandConverter{Path: p, Args: slices.Clone(c.args)}, nil
		}
		tried = append(tried, c.name)
	}
	return nil, errs.Configf("renderer", "no HTML to PDF converter on PATH (tried %s)", strings.Join(tried, ", "))
}

// Convert implements Converter.
func (c *CommandConverter) Convert(ctx context.Context, html []byte, dst string) error {
	args := append(slices.Clone(c.Args), "-", dst)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdin = bytes.NewReader(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("Convert: %s: %w: %s", c.Path, err, strings.TrimSpace(stderr.String()))
	}
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("Convert: %s produced no output: %w", c.Path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("Convert: %s wrote an empty file", c.Path)
	}
	return nil
}
