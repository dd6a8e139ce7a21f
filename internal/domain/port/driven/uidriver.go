package driven

import "context"

// UIDriver is the front end attached to a shell session. Prompts return
// model.ErrInputCancelled when the user declines to answer.
type UIDriver interface {
	PromptText(ctx context.Context, label string) (string, error)
	PromptSecret(ctx context.Context, label string) (string, error)

	// ShowResult displays message. When secret is non-empty the driver may
	// offer to copy it somewhere convenient, such as the clipboard.
	ShowResult(ctx context.Context, message, secret string) error
}
