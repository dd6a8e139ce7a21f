// Package terminal provides the line-based terminal front end for the lockbox shell.
package terminal

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UIDriver = (*Driver)(nil)

// Driver implements driven.UIDriver over a reader and a writer. When the input
// is a terminal, secret prompts disable echo; when the output is a terminal,
// secrets are also offered to the clipboard with an OSC 52 escape sequence.
type Driver struct {
	in  *bufio.Reader
	out io.Writer

	inFd       int
	inIsTTY    bool
	outIsTTY   bool
	readNoEcho func(fd int) ([]byte, error)
	saveState  func(fd int) func()

	// pending holds a read left running by a cancelled prompt.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// New creates a Driver reading from in and writing to out. Pass os.Stdin and
// os.Stdout for an interactive session.
func New(in io.Reader, out io.Writer) *Driver {
	d := &Driver{
		in:         bufio.NewReader(in),
		out:        out,
		inFd:       -1,
		readNoEcho: term.ReadPassword,
		saveState:  saveTermState,
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.inFd = int(f.Fd())
		d.inIsTTY = true
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.outIsTTY = true
	}

	return d
}

// PromptText shows label and reads one line. End of input before any
// characters are read, or ctx ending while the read is blocked, is reported
// as model.ErrInputCancelled.
func (d *Driver) PromptText(ctx context.Context, label string) (string, error) {
	if err := d.prompt(ctx, label); err != nil {
		return "", err
	}
	return d.await(ctx, d.readLine, nil)
}

// PromptSecret reads a line without echo when the input is a terminal.
// Otherwise it behaves like PromptText.
func (d *Driver) PromptSecret(ctx context.Context, label string) (string, error) {
	if !d.inIsTTY {
		return d.PromptText(ctx, label)
	}
	if err := d.prompt(ctx, label); err != nil {
		return "", err
	}

	// ReadPassword only restores echo when it returns, which it does not do
	// if ctx ends first.
	restore := d.saveState(d.inFd)
	secret, err := d.await(ctx, d.readSecret, restore)
	// Echo is off, so the user's newline was never printed.
	_, _ = fmt.Fprintln(d.out)
	return secret, err
}

func (d *Driver) prompt(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInputCancelled, err)
	}
	if _, err := fmt.Fprintf(d.out, "%s ", label); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	return nil
}

// await runs read in the background and waits for it or for ctx. A read
// abandoned by a cancelled prompt stays pending and its result goes to the
// next prompt, so no input is lost and the reader is never used concurrently.
func (d *Driver) await(ctx context.Context, read func() (string, error), onCancel func()) (string, error) {
	if d.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := read()
			ch <- readResult{line: line, err: err}
		}()
		d.pending = ch
	}

	select {
	case r := <-d.pending:
		d.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		return "", fmt.Errorf("%w: %w", model.ErrInputCancelled, ctx.Err())
	}
}

// ShowResult prints message on its own line. A non-empty secret is copied to
// the terminal clipboard when the output supports it.
func (d *Driver) ShowResult(ctx context.Context, message, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(d.out, message); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if secret == "" || !d.outIsTTY {
		return nil
	}
	if _, err := io.WriteString(d.out, clipboardSequence(secret)); err != nil {
		return fmt.Errorf("write clipboard sequence: %w", err)
	}
	_, err := fmt.Fprintln(d.out, "(copied to clipboard)")
	return err
}

func (d *Driver) readLine() (string, error) {
	line, err := d.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", model.ErrInputCancelled
			}
		} else {
			return "", fmt.Errorf("read input: %w", err)
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (d *Driver) readSecret() (string, error) {
	secret, err := d.readNoEcho(d.inFd)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", model.ErrInputCancelled
		}
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

// saveTermState snapshots the terminal mode of fd and returns a function that
// puts it back. Non-terminals yield a no-op.
func saveTermState(fd int) func() {
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, state) }
}

// clipboardSequence builds the OSC 52 escape that asks the terminal emulator
// to place text on the system clipboard.
func clipboardSequence(text string) string {
	return "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
}
