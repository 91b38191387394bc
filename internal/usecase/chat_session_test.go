package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
)

func newTestSession(t *testing.T) (*ChatSession, *SessionIdentity, *fakeMessageRepo, *fakeSummaryRepo, *recordingSink) {
	t.Helper()

	messageRepo := &fakeMessageRepo{}
	summaryRepo := &fakeSummaryRepo{}
	userRepo := &fakeUserRepo{users: map[string]*entity.User{}}
	identity := NewSessionIdentity()
	sink := &recordingSink{}

	uc := NewChatUseCase(messageRepo, summaryRepo, userRepo, 0)
	session := NewChatSession(identity, uc, messageRepo, summaryRepo, sink)
	t.Cleanup(session.Close)

	return session, identity, messageRepo, summaryRepo, sink
}

func waitForReset(t *testing.T, summaryRepo *fakeSummaryRepo, want resetRecord) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, record := range summaryRepo.resetRecords() {
			if record == want {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSelectConversationRequiresSignIn(t *testing.T) {
	session, _, messageRepo, _, sink := newTestSession(t)
	session.Start(context.Background())

	err := session.SelectConversation(testPartner("user2"))

	assertAppCode(t, err, "NOT_AUTHENTICATED")
	assertAppCode(t, sink.lastError(), "NOT_AUTHENTICATED")
	assert.Empty(t, messageRepo.subscribeCalls)
}

func TestSelectConversationRejectsSelf(t *testing.T) {
	session, identity, messageRepo, summaryRepo, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	err := session.SelectConversation(testPartner("user1"))

	// Rejected before any subscription or reset reaches the store.
	assertAppCode(t, err, "SELF_CHAT_REJECTED")
	assertAppCode(t, sink.lastError(), "SELF_CHAT_REJECTED")
	assert.Empty(t, messageRepo.subscribeCalls)
	assert.Empty(t, summaryRepo.resetRecords())
}

func TestSelectConversationOpensSubscription(t *testing.T) {
	session, identity, messageRepo, summaryRepo, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	err := session.SelectConversation(testPartner("user2"))
	assert.NoError(t, err)

	assert.Equal(t, []string{"user1_user2"}, messageRepo.subscribeCalls)

	// The rendered list is cleared and loading raised before the first
	// snapshot lands.
	assert.Equal(t, []*entity.Message{}, sink.lastMessages())
	assert.Equal(t, []bool{true}, sink.loadingEvents())

	snapshot := []*entity.Message{{ID: "m1", SenderID: "user2", Body: "hey"}}
	messageRepo.pushSnapshot(snapshot)

	assert.Equal(t, snapshot, sink.lastMessages())
	assert.Equal(t, []bool{true, false}, sink.loadingEvents())

	waitForReset(t, summaryRepo, resetRecord{ownerID: "user1", partnerID: "user2"})
}

func TestSelectConversationReplacesPrevious(t *testing.T) {
	session, identity, messageRepo, summaryRepo, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	assert.NoError(t, session.SelectConversation(testPartner("user2")))
	assert.NoError(t, session.SelectConversation(testPartner("user3")))

	assert.Equal(t, []string{"user1_user2", "user1_user3"}, messageRepo.subscribeCalls)
	assert.Equal(t, 1, messageRepo.subs[0].cancelCount(), "previous subscription must be released")
	assert.Equal(t, 0, messageRepo.subs[1].cancelCount())

	// The release happened before the second subscription opened.
	assert.Equal(t, []int{0, 1}, messageRepo.priorCancels)

	waitForReset(t, summaryRepo, resetRecord{ownerID: "user1", partnerID: "user3"})
}

func TestSelectConversationSnapshotReplacesWholesale(t *testing.T) {
	session, identity, messageRepo, _, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	first := []*entity.Message{{ID: "m1", Body: "one"}}
	second := []*entity.Message{{ID: "m1", Body: "one"}, {ID: "m2", Body: "two"}}

	messageRepo.pushSnapshot(first)
	messageRepo.pushSnapshot(second)

	assert.Equal(t, second, sink.lastMessages())
}

func TestSendThroughSelectedConversation(t *testing.T) {
	session, identity, messageRepo, _, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())
	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	err := session.Send(context.Background(), "hello there")

	assert.NoError(t, err)
	if assert.Len(t, messageRepo.appends, 1) {
		assert.Equal(t, "user1_user2", messageRepo.appends[0].conversationID)
		assert.Equal(t, "hello there", messageRepo.appends[0].message.Body)
	}
}

func TestSendWithoutSelection(t *testing.T) {
	session, identity, messageRepo, _, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	err := session.Send(context.Background(), "hello")

	assertAppCode(t, err, "NO_CONVERSATION_SELECTED")
	assertAppCode(t, sink.lastError(), "NO_CONVERSATION_SELECTED")
	assert.Equal(t, 0, messageRepo.appendCount())
}

func TestLeaveConversationCancelsSubscription(t *testing.T) {
	session, identity, messageRepo, _, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())
	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	session.LeaveConversation()

	assert.Equal(t, 1, messageRepo.subs[0].cancelCount())
	_, selected := session.SelectedPartner()
	assert.False(t, selected)
}

func TestStartOpensInboxForSignedInUser(t *testing.T) {
	session, identity, _, summaryRepo, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	assert.Equal(t, []string{"user1"}, summaryRepo.subscribeCalls)

	snapshot := []*entity.ActiveChatSummary{{ConversationID: "user1_user2", PartnerID: "user2", UnreadCount: 3}}
	summaryRepo.lastOnData(snapshot)

	assert.Equal(t, snapshot, sink.lastActiveChats())
}

func TestIdentityChangeResubscribesInbox(t *testing.T) {
	session, identity, messageRepo, summaryRepo, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())
	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	identity.SignIn(signedInUser("user9"))

	// Everything bound to the old identity is torn down before the new
	// inbox opens.
	assert.Equal(t, 1, messageRepo.subs[0].cancelCount())
	assert.Equal(t, 1, summaryRepo.subs[0].cancelCount())
	assert.Equal(t, []string{"user1", "user9"}, summaryRepo.subscribeCalls)

	_, selected := session.SelectedPartner()
	assert.False(t, selected)
}

func TestSignOutClearsInbox(t *testing.T) {
	session, identity, _, summaryRepo, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	identity.SignOut()

	assert.Equal(t, 1, summaryRepo.subs[0].cancelCount())
	assert.Equal(t, []*entity.ActiveChatSummary{}, sink.lastActiveChats())
	assert.Equal(t, []string{"user1"}, summaryRepo.subscribeCalls)
}

func TestSubscriptionErrorKeepsRenderedMessages(t *testing.T) {
	session, identity, messageRepo, _, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())
	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	rendered := []*entity.Message{{ID: "m1", SenderID: "user2", Body: "hey"}}
	messageRepo.pushSnapshot(rendered)

	messageRepo.lastOnError(errors.Internal("Message subscription failed", nil))

	// The failure clears loading and is surfaced, but whatever was
	// rendered stays on screen.
	assertAppCode(t, sink.lastError(), "INTERNAL_ERROR")
	assert.Equal(t, []bool{true, false, false}, sink.loadingEvents())
	assert.Equal(t, rendered, sink.lastMessages())
}

func TestSelectConversationSubscribeFailure(t *testing.T) {
	session, identity, messageRepo, _, sink := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())

	messageRepo.subscribeErr = errors.Internal("Message subscription failed", nil)

	err := session.SelectConversation(testPartner("user2"))

	assertAppCode(t, err, "INTERNAL_ERROR")
	assertAppCode(t, sink.lastError(), "INTERNAL_ERROR")
	assert.Equal(t, []bool{true, false}, sink.loadingEvents())
	assert.Empty(t, messageRepo.subs, "no subscription handle must be stored")
}

func TestStartAfterCloseIsNoOp(t *testing.T) {
	session, identity, _, summaryRepo, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))

	session.Close()
	session.Start(context.Background())

	assert.Empty(t, summaryRepo.subscribeCalls)

	// The identity listener was never registered, so later sign-ins
	// cannot reach the closed session.
	identity.SignIn(signedInUser("user2"))
	assert.Empty(t, summaryRepo.subscribeCalls)
}

func TestConcurrentStartAndClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		session, identity, _, summaryRepo, _ := newTestSession(t)
		identity.SignIn(signedInUser("user1"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			session.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			session.Close()
		}()
		wg.Wait()

		// Whichever order won, the session ends closed: a later sign-in
		// must not open an inbox subscription for it.
		identity.SignIn(signedInUser("user2"))
		for _, owner := range summaryRepo.subscribeCalls {
			assert.NotEqual(t, "user2", owner)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	session, identity, messageRepo, summaryRepo, _ := newTestSession(t)
	identity.SignIn(signedInUser("user1"))
	session.Start(context.Background())
	assert.NoError(t, session.SelectConversation(testPartner("user2")))

	session.Close()
	session.Close()

	assert.Equal(t, 1, messageRepo.subs[0].cancelCount())
	assert.Equal(t, 1, summaryRepo.subs[0].cancelCount())
}
