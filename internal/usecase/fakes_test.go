package usecase

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type fakeSubscription struct {
	mu      sync.Mutex
	cancels int
}

func (s *fakeSubscription) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

func (s *fakeSubscription) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

type appendRecord struct {
	conversationID string
	message        *entity.Message
}

type listRecord struct {
	conversationID string
	limit          int
}

type fakeMessageRepo struct {
	mu             sync.Mutex
	appends        []appendRecord
	listCalls      []listRecord
	listResult     []*entity.Message
	subscribeCalls []string
	subs           []*fakeSubscription
	// cancels of earlier subscriptions observed at each Subscribe call,
	// to prove release happens before the replacement opens
	priorCancels []int
	lastOnData   func([]*entity.Message)
	lastOnError  func(error)

	appendErr    error
	subscribeErr error
}

func (f *fakeMessageRepo) Append(ctx context.Context, conversationID string, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, appendRecord{conversationID: conversationID, message: message})
	return nil
}

func (f *fakeMessageRepo) Subscribe(ctx context.Context, conversationID string, onData func([]*entity.Message), onError func(error)) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	cancelled := 0
	for _, prior := range f.subs {
		cancelled += prior.cancelCount()
	}
	f.priorCancels = append(f.priorCancels, cancelled)

	sub := &fakeSubscription{}
	f.subscribeCalls = append(f.subscribeCalls, conversationID)
	f.subs = append(f.subs, sub)
	f.lastOnData = onData
	f.lastOnError = onError
	return sub, nil
}

func (f *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, listRecord{conversationID: conversationID, limit: limit})
	return f.listResult, nil
}

func (f *fakeMessageRepo) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends)
}

func (f *fakeMessageRepo) pushSnapshot(messages []*entity.Message) {
	f.mu.Lock()
	onData := f.lastOnData
	f.mu.Unlock()
	if onData != nil {
		onData(messages)
	}
}

type summaryRecord struct {
	ownerID string
	summary *entity.ActiveChatSummary
}

type resetRecord struct {
	ownerID   string
	partnerID string
}

type fakeSummaryRepo struct {
	mu             sync.Mutex
	outgoing       []summaryRecord
	incoming       []summaryRecord
	resets         []resetRecord
	listResult     []*entity.ActiveChatSummary
	subscribeCalls []string
	subs           []*fakeSubscription
	lastOnData     func([]*entity.ActiveChatSummary)

	outgoingErr  error
	incomingErr  error
	resetErr     error
	subscribeErr error
}

func (f *fakeSummaryRepo) RecordOutgoing(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outgoingErr != nil {
		return f.outgoingErr
	}
	f.outgoing = append(f.outgoing, summaryRecord{ownerID: ownerID, summary: summary})
	return nil
}

func (f *fakeSummaryRepo) RecordIncoming(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incomingErr != nil {
		return f.incomingErr
	}
	f.incoming = append(f.incoming, summaryRecord{ownerID: ownerID, summary: summary})
	return nil
}

func (f *fakeSummaryRepo) ResetUnread(ctx context.Context, ownerID, partnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, resetRecord{ownerID: ownerID, partnerID: partnerID})
	return nil
}

func (f *fakeSummaryRepo) ListByOwner(ctx context.Context, ownerID string) ([]*entity.ActiveChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listResult, nil
}

func (f *fakeSummaryRepo) Subscribe(ctx context.Context, ownerID string, onData func([]*entity.ActiveChatSummary), onError func(error)) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSubscription{}
	f.subscribeCalls = append(f.subscribeCalls, ownerID)
	f.subs = append(f.subs, sub)
	f.lastOnData = onData
	return sub, nil
}

func (f *fakeSummaryRepo) resetRecords() []resetRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]resetRecord, len(f.resets))
	copy(out, f.resets)
	return out
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

// recordingSink captures every event the session emits, in order.
type recordingSink struct {
	mu          sync.Mutex
	messages    [][]*entity.Message
	activeChats [][]*entity.ActiveChatSummary
	loading     []bool
	errs        []error
}

func (s *recordingSink) OnMessages(messages []*entity.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, messages)
	s.mu.Unlock()
}

func (s *recordingSink) OnActiveChats(summaries []*entity.ActiveChatSummary) {
	s.mu.Lock()
	s.activeChats = append(s.activeChats, summaries)
	s.mu.Unlock()
}

func (s *recordingSink) OnLoading(loading bool) {
	s.mu.Lock()
	s.loading = append(s.loading, loading)
	s.mu.Unlock()
}

func (s *recordingSink) OnError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordingSink) lastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

func (s *recordingSink) lastMessages() []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

func (s *recordingSink) lastActiveChats() []*entity.ActiveChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.activeChats) == 0 {
		return nil
	}
	return s.activeChats[len(s.activeChats)-1]
}

func (s *recordingSink) loadingEvents() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.loading))
	copy(out, s.loading)
	return out
}
