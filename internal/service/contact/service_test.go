package contact

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Contact
	byEmail map[string]*domain.Contact
	nextID  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		byID:    make(map[string]*domain.Contact),
		byEmail: make(map[string]*domain.Contact),
	}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*domain.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, c *domain.Contact) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byEmail[c.Email]; ok {
		cp := *existing
		return &cp, nil
	}
	m.nextID++
	c.ID = fmt.Sprintf("contact-%03d", m.nextID)
	c.CreatedAt = time.Now().UTC()
	m.byID[c.ID] = c
	m.byEmail[c.Email] = c
	cp := *c
	return &cp, nil
}

func (m *mockRepo) RecordBounce(_ context.Context, id string, bt domain.BounceType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.BounceCount++
	c.LastBounceAt = &at
	c.LastBounceType = &bt
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id string, status domain.ContactStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func TestCreateOrGet_NormalizesAndDeduplicates(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	a, err := svc.CreateOrGet(ctx, " Upper@Example.COM ", "")
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if a.Email != "upper@example.com" {
		t.Errorf("expected normalized email, got %q", a.Email)
	}

	b, err := svc.CreateOrGet(ctx, "upper@example.com", "ext-1")
	if err != nil {
		t.Fatalf("CreateOrGet #2: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("expected same contact for same email, got %s and %s", a.ID, b.ID)
	}
}

func TestCreateOrGet_EmptyEmail_Fails(t *testing.T) {
	svc := NewService(newMockRepo())

	if _, err := svc.CreateOrGet(context.Background(), "   ", ""); err != ErrInvalidEmail {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestRecordBounce_CreatesUnknownContact(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	c, err := svc.RecordBounce(ctx, domain.BounceEvent{
		Email:      "new@example.com",
		BounceType: domain.BounceSoft,
		BouncedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordBounce: %v", err)
	}
	if c.BounceCount != 1 {
		t.Errorf("expected bounce count 1, got %d", c.BounceCount)
	}
	if c.Status != domain.ContactBouncedSoft {
		t.Errorf("expected bounced_soft status, got %s", c.Status)
	}
}

func TestRecordBounce_CounterMonotonic(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordBounce(ctx, domain.BounceEvent{
			Email:      "soft@example.com",
			BounceType: domain.BounceSoft,
		}); err != nil {
			t.Fatalf("RecordBounce #%d: %v", i, err)
		}
	}

	c, _ := svc.GetByEmail(ctx, "soft@example.com")
	if c.BounceCount != 3 {
		t.Errorf("expected bounce count 3, got %d", c.BounceCount)
	}
}

func TestRecordBounce_HardBounceSetsHardStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	c, err := svc.RecordBounce(ctx, domain.BounceEvent{
		Email:      "hard@example.com",
		BounceType: domain.BounceHard,
	})
	if err != nil {
		t.Fatalf("RecordBounce: %v", err)
	}
	if c.Status != domain.ContactBouncedHard {
		t.Errorf("expected bounced_hard, got %s", c.Status)
	}
}

func TestRecordBounce_DoesNotTouchSuppressedStatus(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, _ := svc.CreateOrGet(ctx, "done@example.com", "")
	_ = repo.UpdateStatus(ctx, c.ID, domain.ContactSuppressed)

	after, err := svc.RecordBounce(ctx, domain.BounceEvent{
		Email:      "done@example.com",
		BounceType: domain.BounceSoft,
	})
	if err != nil {
		t.Fatalf("RecordBounce: %v", err)
	}
	if after.Status != domain.ContactSuppressed {
		t.Errorf("bounce enrichment must not change suppressed status, got %s", after.Status)
	}
}

func TestHashEmail_StableAcrossCase(t *testing.T) {
	if HashEmail("A@B.com") != HashEmail(" a@b.COM ") {
		t.Error("expected identical hash for same normalized email")
	}
}
