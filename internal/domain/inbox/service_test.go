package inbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
)

// -- Mock Notification Repository --

type mockNotificationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Notification
	clock time.Time
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		items: make(map[uuid.UUID]*Notification),
		clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	n.CreatedAt = m.clock
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, apperr.Wrap(apperr.ErrNotFound, "notification %s", id)
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.items {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockNotificationRepo) ListUnreadIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, _ := m.ListUnreadIDs(ctx, userID)
	return len(ids), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return apperr.Wrap(apperr.ErrNotFound, "notification %s", id)
	}
	n.IsRead = true
	return nil
}

// -- Mock Pusher --

type pushed struct {
	userID    uuid.UUID
	eventType string
	payload   interface{}
}

type mockPusher struct {
	mu     sync.Mutex
	events []pushed
	err    error
}

func (p *mockPusher) PushToUser(_ context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{userID, eventType, payload})
	return p.err
}

func newTestService() (*Service, *mockNotificationRepo, *mockPusher) {
	repo := newMockNotificationRepo()
	pusher := &mockPusher{}
	return NewService(repo, pusher, zerolog.Nop()), repo, pusher
}

func TestService_Create(t *testing.T) {
	svc, _, pusher := newTestService()
	user := uuid.New()

	n, err := svc.Create(context.Background(), user, "  hello  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.IsRead {
		t.Error("new notifications must be unread")
	}
	if n.Message != "hello" {
		t.Errorf("expected trimmed message, got %q", n.Message)
	}
	if len(pusher.events) != 1 || pusher.events[0].userID != user || pusher.events[0].eventType != EventNotification {
		t.Errorf("expected one push to the recipient, got %+v", pusher.events)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), uuid.Nil, "x"); !errors.Is(err, apperr.ErrMissingField) {
		t.Errorf("nil user: expected ErrMissingField, got %v", err)
	}
	if _, err := svc.Create(context.Background(), uuid.New(), " "); !errors.Is(err, apperr.ErrMissingField) {
		t.Errorf("blank message: expected ErrMissingField, got %v", err)
	}
}

func TestService_Create_PushFailureIsNotAnError(t *testing.T) {
	svc, repo, pusher := newTestService()
	pusher.err = errors.New("socket gone")

	if _, err := svc.Create(context.Background(), uuid.New(), "hi"); err != nil {
		t.Fatalf("push failure must not fail Create: %v", err)
	}
	if len(repo.items) != 1 {
		t.Error("notification should be stored")
	}
}

func TestService_Create_NilPusher(t *testing.T) {
	svc := NewService(newMockNotificationRepo(), nil, zerolog.Nop())
	if err := svc.Notify(context.Background(), uuid.New(), "hi"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestService_List_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	user, other := uuid.New(), uuid.New()
	for _, msg := range []string{"first", "second", "third"} {
		if err := svc.Notify(context.Background(), user, msg); err != nil {
			t.Fatal(err)
		}
	}
	_ = svc.Notify(context.Background(), other, "not yours")

	items, err := svc.List(context.Background(), user)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(items))
	}
	if items[0].Message != "third" || items[2].Message != "first" {
		t.Errorf("expected newest first, got %q..%q", items[0].Message, items[2].Message)
	}
}

func TestService_List_EmptyIsNotNil(t *testing.T) {
	svc, _, _ := newTestService()
	items, err := svc.List(context.Background(), uuid.New())
	if err != nil || items == nil {
		t.Errorf("expected empty slice, got %v, %v", items, err)
	}
}

func TestService_MarkRead_NoOwnershipCheck(t *testing.T) {
	svc, _, _ := newTestService()
	n, _ := svc.Create(context.Background(), uuid.New(), "hi")

	got, err := svc.MarkRead(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !got.IsRead {
		t.Error("expected notification to be read")
	}
	if _, err := svc.MarkRead(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_MarkAllRead(t *testing.T) {
	svc, _, _ := newTestService()
	user, other := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		_ = svc.Notify(context.Background(), user, "x")
	}
	_ = svc.Notify(context.Background(), other, "y")

	marked, err := svc.MarkAllRead(context.Background(), user)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if marked != 3 {
		t.Errorf("expected 3 marked, got %d", marked)
	}
	if n, _ := svc.UnreadCount(context.Background(), user); n != 0 {
		t.Errorf("expected 0 unread, got %d", n)
	}
	if n, _ := svc.UnreadCount(context.Background(), other); n != 1 {
		t.Errorf("other user's notifications must be untouched, got %d unread", n)
	}

	again, err := svc.MarkAllRead(context.Background(), user)
	if err != nil || again != 0 {
		t.Errorf("re-run should be a no-op, got %d, %v", again, err)
	}
}
