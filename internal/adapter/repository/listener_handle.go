package repository

import (
	"context"
	"sync"

	"marketchat/internal/domain/repository"
)

// listenerHandle cancels the context feeding a snapshot listener. The
// goroutine behind the listener observes the cancellation on its next
// iterator call and exits.
type listenerHandle struct {
	cancel context.CancelFunc
	once   sync.Once
}

func newListenerHandle(cancel context.CancelFunc) repository.Subscription {
	return &listenerHandle{cancel: cancel}
}

func (h *listenerHandle) Cancel() {
	h.once.Do(h.cancel)
}
