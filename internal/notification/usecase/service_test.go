package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"plan-notifier/internal/notification/domain"
	"plan-notifier/pkg/metrics"
)

// --- mocks ---

type mockUserRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	removed map[string][]string
	deleted []string
	getErr  error
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{
		users:   make(map[string]*domain.User),
		removed: make(map[string][]string),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	copied.Tokens = append([]string(nil), u.Tokens...)
	return &copied, nil
}

func (m *mockUserRepo) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed[userID] = append(m.removed[userID], tokens...)
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	var kept []string
	for _, t := range u.Tokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
	return nil
}

func (m *mockUserRepo) AddCheckInStats(ctx context.Context, userID string, added, checkedInTotal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	u.TotalParticipantsUntilNow += int64(added)
	if int64(checkedInTotal) > u.MaxParticipantsInOnePlan {
		u.MaxParticipantsInOnePlan = int64(checkedInTotal)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *mockUserRepo) tokens(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return append([]string(nil), u.Tokens...)
	}
	return nil
}

type mockPlanRepo struct {
	plans map[string]*domain.Plan
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	if m.plans == nil {
		return nil, nil
	}
	return m.plans[id], nil
}

type mockNotificationRepo struct {
	mu               sync.Mutex
	created          []*domain.Notification
	deletedReceivers []string
	createErr        error
	deleteErr        error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) DeleteByReceiver(ctx context.Context, receiverID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedReceivers = append(m.deletedReceivers, receiverID)
	return nil
}

func (m *mockNotificationRepo) receivers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, n := range m.created {
		ids = append(ids, n.ReceiverID)
	}
	sort.Strings(ids)
	return ids
}

type sentPush struct {
	tokens  []string
	content domain.PushContent
	data    map[string]string
}

type mockPush struct {
	mu        sync.Mutex
	sent      []sentPush
	outcomeFn func(tokens []string) []domain.SendOutcome
	err       error
}

func (m *mockPush) SendMulticast(ctx context.Context, tokens []string, content domain.PushContent, data map[string]string) ([]domain.SendOutcome, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	m.sent = append(m.sent, sentPush{tokens: tokens, content: content, data: data})
	m.mu.Unlock()

	if m.outcomeFn != nil {
		return m.outcomeFn(tokens), nil
	}
	outcomes := make([]domain.SendOutcome, len(tokens))
	for i, t := range tokens {
		outcomes[i] = domain.SendOutcome{Token: t, Status: domain.SendSuccess}
	}
	return outcomes, nil
}

func (m *mockPush) calls() []sentPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentPush(nil), m.sent...)
}

func newTestService(users *mockUserRepo, plans *mockPlanRepo, notifs *mockNotificationRepo, push *mockPush) *Service {
	if plans == nil {
		plans = &mockPlanRepo{}
	}
	if notifs == nil {
		notifs = &mockNotificationRepo{}
	}
	if push == nil {
		push = &mockPush{}
	}
	return NewService(users, plans, notifs, push, NewComposer("es"), metrics.Noop{})
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func notificationEvent(t *testing.T, n domain.Notification) domain.Event {
	t.Helper()
	return domain.Event{
		Kind:     domain.KindNotificationCreated,
		Params:   map[string]string{"id": "n1"},
		Snapshot: mustRaw(t, n),
	}
}

func planWrittenEvent(t *testing.T, planID string, before, after domain.Plan) domain.Event {
	t.Helper()
	return domain.Event{
		Kind:   domain.KindPlanWritten,
		Params: map[string]string{"planId": planID},
		Before: mustRaw(t, before),
		After:  mustRaw(t, after),
	}
}

// --- notification created ---

func TestHandleNotificationCreatedResolvesAndReconciles(t *testing.T) {
	// Receiver {t1,t2}, sender {t2,t3}: only t1 is targeted. t1 comes back
	// permanently invalid, so the receiver ends up with {t2}.
	users := newMockUserRepo(
		&domain.User{ID: "u", Tokens: []string{"t1", "t2"}},
		&domain.User{ID: "s", Name: "Ana", Tokens: []string{"t2", "t3"}},
	)
	push := &mockPush{outcomeFn: func(tokens []string) []domain.SendOutcome {
		outcomes := make([]domain.SendOutcome, len(tokens))
		for i, tok := range tokens {
			status := domain.SendSuccess
			if tok == "t1" {
				status = domain.SendUnregistered
			}
			outcomes[i] = domain.SendOutcome{Token: tok, Status: status}
		}
		return outcomes
	}}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{
		Type: domain.TypeInvitation, SenderID: "s", ReceiverID: "u", PlanID: "p1",
	})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotificationCreated() error = %v", err)
	}

	calls := push.calls()
	if len(calls) != 1 {
		t.Fatalf("push calls = %d, want 1", len(calls))
	}
	if !reflect.DeepEqual(calls[0].tokens, []string{"t1"}) {
		t.Errorf("sent tokens = %v, want [t1]", calls[0].tokens)
	}
	if got := users.tokens("u"); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Errorf("receiver tokens after reconciliation = %v, want [t2]", got)
	}
	if got := users.removed["u"]; !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("removed tokens = %v, want [t1]", got)
	}
}

func TestHandleNotificationCreatedSelfNotification(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "u", Tokens: []string{"t1"}})
	push := &mockPush{}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{
		Type: domain.TypeInvitation, SenderID: "u", ReceiverID: "u",
	})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotificationCreated() error = %v", err)
	}
	if len(push.calls()) != 0 {
		t.Error("self-notification must not be delivered")
	}
}

func TestHandleNotificationCreatedNoReceiverTokens(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "u"},
		&domain.User{ID: "s", Tokens: []string{"t1"}},
	)
	push := &mockPush{}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{SenderID: "s", ReceiverID: "u"})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotificationCreated() error = %v", err)
	}
	if len(push.calls()) != 0 {
		t.Error("empty receiver token set must be a no-op")
	}
}

func TestHandleNotificationCreatedFullOverlapFallsBack(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "u", Tokens: []string{"t1"}},
		&domain.User{ID: "s", Tokens: []string{"t1"}},
	)
	push := &mockPush{}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{SenderID: "s", ReceiverID: "u"})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotificationCreated() error = %v", err)
	}

	calls := push.calls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].tokens, []string{"t1"}) {
		t.Errorf("full overlap must fall back to receiver set, got %v", calls)
	}
}

func TestHandleNotificationCreatedTransientFailuresKeepTokens(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "u", Tokens: []string{"t1", "t2"}},
	)
	push := &mockPush{outcomeFn: func(tokens []string) []domain.SendOutcome {
		outcomes := make([]domain.SendOutcome, len(tokens))
		for i, tok := range tokens {
			outcomes[i] = domain.SendOutcome{Token: tok, Status: domain.SendTransient}
		}
		return outcomes
	}}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{SenderID: "s", ReceiverID: "u"})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotificationCreated() error = %v", err)
	}

	if len(users.removed["u"]) != 0 {
		t.Errorf("transient failures must not prune tokens, removed %v", users.removed["u"])
	}
	if got := users.tokens("u"); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Errorf("tokens = %v, want untouched [t1 t2]", got)
	}
}

func TestHandleNotificationCreatedTransportError(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "u", Tokens: []string{"t1"}})
	push := &mockPush{err: errors.New("fcm unavailable")}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{SenderID: "s", ReceiverID: "u"})
	if err := svc.HandleNotificationCreated(context.Background(), ev); err == nil {
		t.Error("batch transport failure must surface as a failed invocation")
	}
}

func TestHandleNotificationCreatedReplayIsIdempotent(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "u", Tokens: []string{"t1", "t2"}},
	)
	push := &mockPush{outcomeFn: func(tokens []string) []domain.SendOutcome {
		outcomes := make([]domain.SendOutcome, len(tokens))
		for i, tok := range tokens {
			status := domain.SendSuccess
			if tok == "t1" {
				status = domain.SendUnregistered
			}
			outcomes[i] = domain.SendOutcome{Token: tok, Status: status}
		}
		return outcomes
	}}
	svc := newTestService(users, nil, nil, push)

	ev := notificationEvent(t, domain.Notification{SenderID: "s", ReceiverID: "u"})
	for i := 0; i < 2; i++ {
		if err := svc.HandleNotificationCreated(context.Background(), ev); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	// Second delivery targets the already-pruned set; the token list must
	// converge, not corrupt.
	if got := users.tokens("u"); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Errorf("tokens after replay = %v, want [t2]", got)
	}
}

// --- direct messages ---

func TestHandleMessageCreatedComposesSenderBody(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "u", Locale: "en-US", Tokens: []string{"t1"}},
		&domain.User{ID: "s", Name: "Ana", Tokens: []string{"t9"}},
	)
	push := &mockPush{}
	svc := newTestService(users, nil, nil, push)

	ev := domain.Event{
		Kind:     domain.KindMessageCreated,
		Params:   map[string]string{"id": "m1"},
		Snapshot: mustRaw(t, domain.Message{SenderID: "s", ReceiverID: "u"}),
	}
	if err := svc.HandleMessageCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleMessageCreated() error = %v", err)
	}

	calls := push.calls()
	if len(calls) != 1 {
		t.Fatalf("push calls = %d, want 1", len(calls))
	}
	if calls[0].content.Title != "New message" {
		t.Errorf("title = %q, want localized new-message title", calls[0].content.Title)
	}
	if calls[0].content.Body != "You have a message from Ana" {
		t.Errorf("body = %q", calls[0].content.Body)
	}
	if calls[0].data["messageId"] != "m1" || calls[0].data["type"] != domain.TypeChatMessage {
		t.Errorf("data payload = %v", calls[0].data)
	}
}

// --- plan chat fan-out ---

func TestHandlePlanChatCreatedFansOutToParticipantsAndCreator(t *testing.T) {
	users := newMockUserRepo(
		&domain.User{ID: "a", Name: "Ana", Tokens: []string{"ta"}},
		&domain.User{ID: "b", Tokens: []string{"tb"}},
		&domain.User{ID: "c", Tokens: []string{"tc"}},
	)
	plans := &mockPlanRepo{plans: map[string]*domain.Plan{
		"p1": {ID: "p1", Type: "Fiesta", CreatedBy: "c", Participants: []string{"a", "b"}},
	}}
	push := &mockPush{}
	svc := newTestService(users, plans, nil, push)

	ev := domain.Event{
		Kind:     domain.KindPlanChatCreated,
		Params:   map[string]string{"planId": "p1", "id": "m1"},
		Snapshot: mustRaw(t, domain.PlanChatMessage{SenderID: "a"}),
	}
	if err := svc.HandlePlanChatCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandlePlanChatCreated() error = %v", err)
	}

	var sentTokens []string
	for _, call := range push.calls() {
		sentTokens = append(sentTokens, call.tokens...)
	}
	sort.Strings(sentTokens)
	if !reflect.DeepEqual(sentTokens, []string{"tb", "tc"}) {
		t.Errorf("fan-out reached tokens %v, want [tb tc] (sender excluded, creator included)", sentTokens)
	}
}

func TestHandlePlanChatCreatedPlanGone(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "a", Tokens: []string{"ta"}})
	push := &mockPush{}
	svc := newTestService(users, &mockPlanRepo{}, nil, push)

	ev := domain.Event{
		Kind:     domain.KindPlanChatCreated,
		Params:   map[string]string{"planId": "gone"},
		Snapshot: mustRaw(t, domain.PlanChatMessage{SenderID: "a"}),
	}
	if err := svc.HandlePlanChatCreated(context.Background(), ev); err != nil {
		t.Fatalf("deleted plan must be benign, got %v", err)
	}
	if len(push.calls()) != 0 {
		t.Error("no deliveries expected for a deleted plan")
	}
}

// --- plan written: check-in fan-out ---

func TestCheckInStartedFiresOnRisingEdgeOnly(t *testing.T) {
	base := domain.Plan{
		Type: "Fiesta", CreatedBy: "c",
		Participants: []string{"a", "b", "c"},
	}

	tests := []struct {
		name          string
		beforeActive  bool
		afterActive   bool
		wantReceivers []string
	}{
		{"rising edge fires", false, true, []string{"a", "b"}},
		{"already active is a no-op", true, true, nil},
		{"deactivation is a no-op", true, false, nil},
		{"still inactive is a no-op", false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMockUserRepo(&domain.User{ID: "c", Name: "Carla"})
			notifs := &mockNotificationRepo{}
			svc := newTestService(users, nil, notifs, nil)

			before, after := base, base
			before.CheckInActive = tt.beforeActive
			after.CheckInActive = tt.afterActive

			ev := planWrittenEvent(t, "p1", before, after)
			if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
				t.Fatalf("HandlePlanWritten() error = %v", err)
			}

			if got := notifs.receivers(); !reflect.DeepEqual(got, tt.wantReceivers) {
				t.Errorf("notified receivers = %v, want %v", got, tt.wantReceivers)
			}
			for _, n := range notifs.created {
				if n.Type != domain.TypeCheckInStarted {
					t.Errorf("notification type = %q, want %q", n.Type, domain.TypeCheckInStarted)
				}
			}
		})
	}
}

func TestCheckInStartedExcludesAlreadyCheckedIn(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c"})
	notifs := &mockNotificationRepo{}
	svc := newTestService(users, nil, notifs, nil)

	before := domain.Plan{CreatedBy: "c", Participants: []string{"a", "b", "c"}}
	after := before
	after.CheckInActive = true
	after.CheckedInUsers = []string{"b"}

	// The checked-in growth also triggers stats; only the fan-out receivers
	// matter here.
	ev := planWrittenEvent(t, "p1", before, after)
	if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
		t.Fatalf("HandlePlanWritten() error = %v", err)
	}

	if got := notifs.receivers(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("notified receivers = %v, want [a]", got)
	}
}

// --- plan written: removed participants ---

func TestRemovedParticipantsGetNotificationRecords(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c", Name: "Carla", PhotoURL: "pic"})
	notifs := &mockNotificationRepo{}
	push := &mockPush{}
	svc := newTestService(users, nil, notifs, push)

	before := domain.Plan{Type: "Cena", CreatedBy: "c", Participants: []string{"a", "b"}}
	after := domain.Plan{Type: "Cena", CreatedBy: "c", Participants: []string{"b"}}

	ev := planWrittenEvent(t, "p1", before, after)
	if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
		t.Fatalf("HandlePlanWritten() error = %v", err)
	}

	if got := notifs.receivers(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("notified receivers = %v, want [a]", got)
	}
	n := notifs.created[0]
	if n.Type != domain.TypeRemovedFromPlan || n.SenderID != "c" || n.SenderName != "Carla" || n.PlanID != "p1" {
		t.Errorf("notification record = %+v", n)
	}
	// Delivery happens via the notification-created path, never inline.
	if len(push.calls()) != 0 {
		t.Error("removal fan-out must not push inline")
	}
}

// --- plan written: stats aggregation ---

func TestCreatorStatsAggregation(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c"})
	svc := newTestService(users, nil, nil, nil)

	before := domain.Plan{CreatedBy: "c", CheckedInUsers: []string{"a"}}
	after := domain.Plan{CreatedBy: "c", CheckedInUsers: []string{"a", "b", "d"}}

	ev := planWrittenEvent(t, "p1", before, after)
	if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
		t.Fatalf("HandlePlanWritten() error = %v", err)
	}

	u, _ := users.GetByID(context.Background(), "c")
	if u.TotalParticipantsUntilNow != 2 {
		t.Errorf("total = %d, want 2 (only newly checked-in)", u.TotalParticipantsUntilNow)
	}
	if u.MaxParticipantsInOnePlan != 3 {
		t.Errorf("max = %d, want 3", u.MaxParticipantsInOnePlan)
	}
}

func TestCreatorStatsNoopWhenCheckedInShrinks(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c", TotalParticipantsUntilNow: 5, MaxParticipantsInOnePlan: 4})
	svc := newTestService(users, nil, nil, nil)

	before := domain.Plan{CreatedBy: "c", CheckedInUsers: []string{"a", "b"}}
	after := domain.Plan{CreatedBy: "c", CheckedInUsers: []string{"a"}}

	ev := planWrittenEvent(t, "p1", before, after)
	if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
		t.Fatalf("HandlePlanWritten() error = %v", err)
	}

	u, _ := users.GetByID(context.Background(), "c")
	if u.TotalParticipantsUntilNow != 5 || u.MaxParticipantsInOnePlan != 4 {
		t.Errorf("stats changed on shrink: total=%d max=%d", u.TotalParticipantsUntilNow, u.MaxParticipantsInOnePlan)
	}
}

func TestCreatorStatsMissingCreatorIsBenign(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestService(users, nil, nil, nil)

	before := domain.Plan{CreatedBy: "ghost"}
	after := domain.Plan{CreatedBy: "ghost", CheckedInUsers: []string{"a"}}

	ev := planWrittenEvent(t, "p1", before, after)
	if err := svc.HandlePlanWritten(context.Background(), ev); err != nil {
		t.Fatalf("missing creator must abort silently, got %v", err)
	}
}

func TestCreatorStatsConcurrentWritesNoLostUpdates(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c"})
	svc := newTestService(users, nil, nil, nil)

	// Many plans owned by the same creator checking in concurrently.
	const plansCount = 24
	var wg sync.WaitGroup
	errs := make(chan error, plansCount)
	wantTotal := int64(0)
	for i := 0; i < plansCount; i++ {
		size := i%5 + 1
		wantTotal += int64(size)
		checked := make([]string, size)
		for j := range checked {
			checked[j] = fmt.Sprintf("plan%d-user%d", i, j)
		}
		ev := planWrittenEvent(t, fmt.Sprintf("p%d", i),
			domain.Plan{CreatedBy: "c"},
			domain.Plan{CreatedBy: "c", CheckedInUsers: checked},
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.HandlePlanWritten(context.Background(), ev)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("HandlePlanWritten() error = %v", err)
		}
	}

	u, _ := users.GetByID(context.Background(), "c")
	if u.TotalParticipantsUntilNow != wantTotal {
		t.Errorf("total = %d, want %d (no lost updates)", u.TotalParticipantsUntilNow, wantTotal)
	}
	if u.MaxParticipantsInOnePlan != 5 {
		t.Errorf("max = %d, want 5", u.MaxParticipantsInOnePlan)
	}
}

func TestPlanWrittenWithoutBeforeOrAfterIsNoop(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "c"})
	notifs := &mockNotificationRepo{}
	svc := newTestService(users, nil, notifs, nil)

	created := domain.Event{
		Kind:   domain.KindPlanWritten,
		Params: map[string]string{"planId": "p1"},
		After:  mustRaw(t, domain.Plan{CreatedBy: "c", CheckInActive: true, Participants: []string{"a"}}),
	}
	if err := svc.HandlePlanWritten(context.Background(), created); err != nil {
		t.Fatalf("creation write: %v", err)
	}
	if len(notifs.created) != 0 {
		t.Error("creation write must not fan out")
	}
}

// --- user lifecycle ---

func TestHandleUserCreatedWritesWelcomeRecord(t *testing.T) {
	notifs := &mockNotificationRepo{}
	svc := newTestService(newMockUserRepo(), nil, notifs, nil)

	ev := domain.Event{
		Kind:     domain.KindUserCreated,
		Params:   map[string]string{"userId": "u1"},
		Snapshot: mustRaw(t, domain.User{Name: "Ana"}),
	}
	if err := svc.HandleUserCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleUserCreated() error = %v", err)
	}

	if len(notifs.created) != 1 {
		t.Fatalf("created records = %d, want 1", len(notifs.created))
	}
	n := notifs.created[0]
	if n.Type != domain.TypeWelcome || n.ReceiverID != "u1" || n.SenderID != domain.SystemSender {
		t.Errorf("welcome record = %+v", n)
	}
	if n.Message == "" {
		t.Error("welcome record must carry the fixed welcome message")
	}
}

func TestHandleUserDeletedCascades(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "u1"})
	notifs := &mockNotificationRepo{}
	svc := newTestService(users, nil, notifs, nil)

	ev := domain.Event{
		Kind:   domain.KindUserDeleted,
		Params: map[string]string{"userId": "u1"},
	}
	if err := svc.HandleUserDeleted(context.Background(), ev); err != nil {
		t.Fatalf("HandleUserDeleted() error = %v", err)
	}

	if !reflect.DeepEqual(users.deleted, []string{"u1"}) {
		t.Errorf("deleted users = %v, want [u1]", users.deleted)
	}
	if !reflect.DeepEqual(notifs.deletedReceivers, []string{"u1"}) {
		t.Errorf("cascaded receivers = %v, want [u1]", notifs.deletedReceivers)
	}
}

func TestHandleUserDeletedSurfacesCascadeFailure(t *testing.T) {
	users := newMockUserRepo(&domain.User{ID: "u1"})
	notifs := &mockNotificationRepo{deleteErr: errors.New("store unavailable")}
	svc := newTestService(users, nil, notifs, nil)

	ev := domain.Event{
		Kind:   domain.KindUserDeleted,
		Params: map[string]string{"userId": "u1"},
	}
	// The cascade failure must fail the invocation so the broker redelivers
	// and retries the notification cleanup.
	if err := svc.HandleUserDeleted(context.Background(), ev); err == nil {
		t.Error("failed notification cascade must surface as a handler error")
	}
}
