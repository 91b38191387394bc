package usecase

import (
	"marketchat/internal/domain/entity"
)

// CurrentUser is the signed-in identity as the chat core sees it: the
// stable auth uid plus the profile document, which may not be loaded yet.
type CurrentUser struct {
	ID      string
	Email   string
	Profile *entity.User
}

// IdentityProvider supplies the signed-in user and notifies on sign-in,
// sign-out and identity switches. Injected into the session controller
// so lifecycle is managed by the composition root, not by ambient state.
type IdentityProvider interface {
	// CurrentUser returns the signed-in user, or (nil, false) when
	// signed out.
	CurrentUser() (*CurrentUser, bool)

	// OnChange registers a callback fired with the new identity on every
	// change, including transitions to signed-out (nil). It returns an
	// unregister func.
	OnChange(fn func(*CurrentUser)) func()
}

// EventSink is the caller-supplied channel for everything the session
// controller wants the user to see. All asynchronous failures funnel
// through OnError; the core never lets an error escape a callback
// boundary unreported.
type EventSink interface {
	OnMessages(messages []*entity.Message)
	OnActiveChats(summaries []*entity.ActiveChatSummary)
	OnLoading(loading bool)
	OnError(err error)
}
