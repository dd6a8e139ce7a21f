package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// Push uploads the file at localPath, creating the remote file or replacing
// it when one already exists.
func (c *Client) Push(ctx context.Context, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	sha, err := c.remoteSHA(ctx)
	if err != nil && !errors.Is(err, model.ErrRemoteNotFound) {
		return err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(fmt.Sprintf("lockbox: update %s (%s)", c.path, time.Now().UTC().Format(time.RFC3339))),
		Content: data,
	}
	if c.branch != "" {
		opts.Branch = gh.Ptr(c.branch)
	}

	var resp *gh.Response
	if sha == "" {
		_, resp, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, c.path, opts)
	} else {
		opts.SHA = gh.Ptr(sha)
		_, resp, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, c.path, opts)
	}
	logRateLimit(resp, c.endpoint())
	if err != nil {
		return fmt.Errorf("upload %s: %w", c.endpoint(), err)
	}

	slog.Info("vault uploaded", "endpoint", c.endpoint(), "bytes", len(data), "created", sha == "")
	return nil
}

// Pull downloads the remote file into localPath. The download goes to a
// temporary file in the same directory and is renamed over localPath only
// once complete, so a failed or cancelled pull leaves localPath untouched.
// Returns model.ErrRemoteNotFound when the remote file does not exist.
func (c *Client) Pull(ctx context.Context, localPath string) error {
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, c.path, c.getOptions())
	logRateLimit(resp, c.endpoint())
	if isNotFound(resp, err) {
		return model.ErrRemoteNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", c.endpoint(), err)
	}
	if fc == nil {
		return fmt.Errorf("get %s: path is a directory", c.endpoint())
	}

	var src io.Reader
	if fc.GetEncoding() == "base64" {
		content, err := fc.GetContent()
		if err != nil {
			return fmt.Errorf("decode %s: %w", c.endpoint(), err)
		}
		src = strings.NewReader(content)
	} else {
		// Files over the contents API size limit come back without inline content.
		rc, resp, err := c.gh.Repositories.DownloadContents(ctx, c.owner, c.repo, c.path, c.getOptions())
		logRateLimit(resp, c.endpoint())
		if err != nil {
			return fmt.Errorf("download %s: %w", c.endpoint(), err)
		}
		defer rc.Close()
		src = rc
	}

	n, err := writeFileAtomic(ctx, localPath, src)
	if err != nil {
		return err
	}

	slog.Info("vault downloaded", "endpoint", c.endpoint(), "bytes", n)
	return nil
}

// remoteSHA returns the blob SHA of the remote file, or model.ErrRemoteNotFound.
func (c *Client) remoteSHA(ctx context.Context) (string, error) {
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, c.path, c.getOptions())
	logRateLimit(resp, c.endpoint())
	if isNotFound(resp, err) {
		return "", model.ErrRemoteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", c.endpoint(), err)
	}
	if fc == nil {
		return "", fmt.Errorf("get %s: path is a directory", c.endpoint())
	}
	return fc.GetSHA(), nil
}

func (c *Client) getOptions() *gh.RepositoryContentGetOptions {
	if c.branch == "" {
		return nil
	}
	return &gh.RepositoryContentGetOptions{Ref: c.branch}
}

func (c *Client) endpoint() string {
	return c.owner + "/" + c.repo + ":" + c.path
}

func isNotFound(resp *gh.Response, err error) bool {
	if err == nil {
		return false
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// writeFileAtomic copies src into a temporary sibling of path, fsyncs it,
// and renames it over path. ctx is checked before the rename.
func writeFileAtomic(ctx context.Context, path string, src io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lockbox-pull-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: src})
	if err != nil {
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return n, nil
}

// contextReader stops a copy as soon as ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
