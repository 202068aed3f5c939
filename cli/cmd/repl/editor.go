package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/pkg"
)

const defaultEditor = "vi"

// editCommand implements [tea.ExecCommand] for the edit-decode-retry loop.
// It writes the context as YAML to a temp file, opens the user's editor and
// decodes the result. On error the user is asked to re-edit; declining
// fails with [ErrEditDeclined].
type editCommand struct {
	src     Source
	vars    config.Map
	ctxFunc func() context.Context
	logger  log.Logger
	result  config.Map
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func (c *editCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *editCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the loop. An emptied file cancels the edit and leaves result
// nil.
func (c *editCommand) Run() error {
	ctx := c.ctxFunc()

	content, err := config.Marshal(ctx, c.vars, config.FormatYAML, 2)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(os.TempDir(), pkg.Name+"-repl-*.yml")
	if err != nil {
		return err
	}

	path := f.Name()

	defer os.Remove(path)

	if err := f.Chmod(0o600); err != nil {
		f.Close()

		return err
	}

	f.Close()

	for {
		if err := os.WriteFile(path, content, 0o600); err != nil {
			return err
		}

		if err := runEditor(ctx, c.stdin, c.stdout, c.stderr, path); err != nil {
			return err
		}

		if content, err = os.ReadFile(path); err != nil {
			return err
		}

		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		vars, err := c.decode(ctx, content)

		c.logger.TraceContext(ctx, "editor decode attempt",
			slog.Int("content_length", len(content)),
			slog.Bool("success", err == nil),
		)

		if err == nil {
			c.result = vars

			return nil
		}

		fmt.Fprintf(c.stderr, "\nerror: %s\n", err)
		fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "n", "no":
			return ErrEditDeclined
		}
	}
}

// decode parses the edited document and resolves its dynamic values.
func (c *editCommand) decode(ctx context.Context, data []byte) (config.Map, error) {
	vars, err := config.Decode(ctx, data, config.FormatYAML)
	if err != nil {
		return nil, err
	}

	if err := c.src.Resolve(ctx, vars); err != nil {
		return nil, err
	}

	return vars, nil
}

// runEditor runs $EDITOR, or vi, on path.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	args := strings.Fields(editor)

	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	return cmd.Run()
}
