package driven

import "context"

// RemoteSync defines the driven port for whole-file backup and restore of the
// vault file. Authentication and token refresh belong to the implementation.
type RemoteSync interface {
	// Push uploads the file at localPath, creating or replacing the remote copy.
	Push(ctx context.Context, localPath string) error

	// Pull downloads the remote copy into localPath. Returns model.ErrRemoteNotFound
	// when the remote holds no file. A cancelled or failed pull leaves localPath untouched.
	Pull(ctx context.Context, localPath string) error
}
