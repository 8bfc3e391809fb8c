package suppression

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// mockRepo is an in-memory suppression history for testing.
type mockRepo struct {
	mu      sync.Mutex
	entries []*domain.SuppressionEntry
	nextID  int
	failAll bool
}

func (m *mockRepo) CreateEntry(_ context.Context, e *domain.SuppressionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("storage down")
	}
	m.nextID++
	e.ID = fmt.Sprintf("sup-%03d", m.nextID)
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockRepo) ActiveEntry(_ context.Context, contactID string) (*domain.SuppressionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("storage down")
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ContactID == contactID && m.entries[i].IsActive {
			cp := *m.entries[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) DeactivateEntries(_ context.Context, contactID, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("storage down")
	}
	for _, e := range m.entries {
		if e.ContactID == contactID && e.IsActive {
			e.IsActive = false
			e.ReactivatedBy = by
			e.ReactivatedAt = &at
		}
	}
	return nil
}

func (m *mockRepo) History(_ context.Context, contactID string) ([]domain.SuppressionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SuppressionEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ContactID == contactID {
			out = append(out, *m.entries[i])
		}
	}
	return out, nil
}

func (m *mockRepo) CountByReason(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, e := range m.entries {
		if e.IsActive {
			out[string(e.Reason)]++
		}
	}
	return out, nil
}

// mockContacts tracks status transitions and counts store reads.
type mockContacts struct {
	mu       sync.Mutex
	statuses map[string]domain.ContactStatus
	emails   map[string]string // email -> id
	reads    int
	failAll  bool
}

func newMockContacts() *mockContacts {
	return &mockContacts{
		statuses: make(map[string]domain.ContactStatus),
		emails:   make(map[string]string),
	}
}

func (m *mockContacts) add(id, email string) {
	m.statuses[id] = domain.ContactActive
	m.emails[email] = id
}

func (m *mockContacts) GetByID(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failAll {
		return nil, errors.New("storage down")
	}
	st, ok := m.statuses[id]
	if !ok {
		return nil, errors.New("contact not found")
	}
	return &domain.Contact{ID: id, Status: st}, nil
}

func (m *mockContacts) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	m.mu.Lock()
	id, ok := m.emails[email]
	m.mu.Unlock()
	if !ok {
		return nil, errors.New("contact not found")
	}
	return m.GetByID(ctx, id)
}

func (m *mockContacts) UpdateStatus(_ context.Context, id string, status domain.ContactStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

// mockRoster records adds and can be told to fail.
type mockRoster struct {
	mu      sync.Mutex
	added   []string
	removed []string
	failAll bool
}

func (m *mockRoster) AddContact(_ context.Context, contactID, _ string) (*domain.ListMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("roster down")
	}
	m.added = append(m.added, contactID)
	return &domain.ListMembership{ContactID: contactID, IsActive: true}, nil
}

func (m *mockRoster) RemoveContact(_ context.Context, contactID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("roster down")
	}
	m.removed = append(m.removed, contactID)
	return nil
}

// mockCache is a plain map cache with hit accounting.
type mockCache struct {
	mu    sync.Mutex
	vals  map[string]bool
	hits  int
	reads int
}

func newMockCache() *mockCache { return &mockCache{vals: make(map[string]bool)} }

func (m *mockCache) GetSuppression(_ context.Context, contactID string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	v, ok := m.vals[contactID]
	if ok {
		m.hits++
	}
	return v, ok
}

func (m *mockCache) SetSuppression(_ context.Context, contactID string, suppressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[contactID] = suppressed
}

func (m *mockCache) InvalidateSuppression(_ context.Context, contactID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, contactID)
}

func newTestEngine() (*Engine, *mockRepo, *mockContacts, *mockRoster, *mockCache) {
	repo := &mockRepo{}
	contacts := newMockContacts()
	roster := &mockRoster{}
	cache := newMockCache()
	eng := NewEngine(repo, contacts, roster, cache, Config{SuppressionListID: "list-suppressed"})
	return eng, repo, contacts, roster, cache
}

func TestSuppress_CreatesActiveEntryAndStatus(t *testing.T) {
	eng, repo, contacts, roster, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	err := eng.Suppress(ctx, domain.SuppressionRequest{
		ContactID:        "c-1",
		Reason:           domain.ReasonHardBounce,
		SuppressedBy:     "maintenance",
		SourceCampaignID: "camp-9",
	})
	if err != nil {
		t.Fatalf("Suppress: %v", err)
	}

	entry, err := repo.ActiveEntry(ctx, "c-1")
	if err != nil {
		t.Fatalf("ActiveEntry: %v", err)
	}
	if entry.Reason != domain.ReasonHardBounce || !entry.IsActive {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if contacts.statuses["c-1"] != domain.ContactSuppressed {
		t.Errorf("expected suppressed status, got %s", contacts.statuses["c-1"])
	}
	if len(roster.added) != 1 || roster.added[0] != "c-1" {
		t.Errorf("expected mirror add for c-1, got %v", roster.added)
	}
}

func TestSuppress_SingleActiveEntry(t *testing.T) {
	eng, repo, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonSoftBounceExceeded})
	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonHardBounce})

	active := 0
	for _, e := range repo.entries {
		if e.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active entry, got %d", active)
	}
	if len(repo.entries) != 2 {
		t.Errorf("history must be append-only, got %d entries", len(repo.entries))
	}
}

func TestSuppress_RosterFailureDoesNotFailSuppression(t *testing.T) {
	eng, _, contacts, roster, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	roster.failAll = true

	err := eng.Suppress(context.Background(), domain.SuppressionRequest{
		ContactID: "c-1", Reason: domain.ReasonComplaint,
	})
	if err != nil {
		t.Fatalf("Suppress must tolerate roster failure: %v", err)
	}
	if contacts.statuses["c-1"] != domain.ContactSuppressed {
		t.Error("status change is authoritative and must still happen")
	}
}

func TestBulkSuppress_PartialFailure(t *testing.T) {
	eng, _, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	contacts.add("c-2", "two@example.com")

	result := eng.BulkSuppress(context.Background(), []domain.SuppressionRequest{
		{ContactID: "c-1", Reason: domain.ReasonHardBounce},
		{ContactID: "", Reason: domain.ReasonHardBounce}, // invalid
		{ContactID: "c-2", Reason: domain.ReasonComplaint},
	})

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("expected 2/1, got %d/%d", result.Succeeded, result.Failed)
	}
}

func TestReactivate_RestoresStatusAndKeepsHistory(t *testing.T) {
	eng, repo, contacts, roster, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonManual})
	if err := eng.Reactivate(ctx, "c-1", "operator"); err != nil {
		t.Fatalf("Reactivate: %v", err)
	}

	if contacts.statuses["c-1"] != domain.ContactActive {
		t.Errorf("expected active status, got %s", contacts.statuses["c-1"])
	}
	if _, err := repo.ActiveEntry(ctx, "c-1"); err != ErrNotFound {
		t.Error("expected no active entry after reactivation")
	}
	hist, _ := eng.History(ctx, "c-1")
	if len(hist) != 1 || hist[0].ReactivatedBy != "operator" {
		t.Errorf("audit trail lost: %+v", hist)
	}
	if len(roster.removed) != 1 {
		t.Errorf("expected mirror removal, got %v", roster.removed)
	}
}

func TestIsSuppressed_CacheFirst(t *testing.T) {
	eng, _, contacts, _, cache := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonHardBounce})

	if !eng.IsSuppressed(ctx, "c-1") {
		t.Fatal("expected suppressed")
	}
	// second check answered from cache
	before := cache.hits
	if !eng.IsSuppressed(ctx, "c-1") {
		t.Fatal("expected suppressed on repeat")
	}
	if cache.hits != before+1 {
		t.Errorf("expected a cache hit, hits=%d before=%d", cache.hits, before)
	}
}

func TestIsSuppressed_CacheHitSkipsStore(t *testing.T) {
	eng, _, contacts, _, cache := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	cache.SetSuppression(ctx, "c-1", true)

	before := contacts.reads
	if !eng.IsSuppressed(ctx, "c-1") {
		t.Fatal("expected the cached verdict")
	}
	if contacts.reads != before {
		t.Errorf("an id lookup with a cached verdict must not read the store, reads went %d -> %d",
			before, contacts.reads)
	}
}

func TestIsSuppressed_AcceptsEmail(t *testing.T) {
	eng, _, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonComplaint})
	if !eng.IsSuppressed(ctx, "one@example.com") {
		t.Error("expected suppression verdict via email lookup")
	}
}

func TestIsSuppressed_NormalizesEmailKeys(t *testing.T) {
	eng, _, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonHardBounce})
	// A mixed-case or padded address must resolve to the same contact
	// instead of silently failing open.
	if !eng.IsSuppressed(ctx, "  One@Example.COM ") {
		t.Error("expected suppression verdict for a non-normalized email key")
	}
}

func TestIsSuppressed_ActiveEntryAloneIsSufficient(t *testing.T) {
	// Status and history can disagree across error recovery; either signal
	// being true must suppress.
	eng, repo, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	ctx := context.Background()

	_ = repo.CreateEntry(ctx, &domain.SuppressionEntry{
		ContactID: "c-1", Reason: domain.ReasonHardBounce, IsActive: true,
	})
	// contact status still ACTIVE
	if !eng.IsSuppressed(ctx, "c-1") {
		t.Error("active history entry alone must suppress")
	}
}

func TestIsSuppressed_FailsOpen(t *testing.T) {
	eng, _, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "one@example.com")
	contacts.failAll = true

	if eng.IsSuppressed(context.Background(), "c-1") {
		t.Error("read errors must fail open (not suppressed)")
	}
}

func TestIsSuppressed_UnknownContact(t *testing.T) {
	eng, _, _, _, _ := newTestEngine()
	if eng.IsSuppressed(context.Background(), "ghost@example.com") {
		t.Error("unknown contact is not suppressed")
	}
}

func TestClassify_Thresholds(t *testing.T) {
	eng := NewEngine(&mockRepo{}, newMockContacts(), nil, nil, Config{SoftBounceThreshold: 3})

	hard := domain.BounceHard
	soft := domain.BounceSoft
	complaint := domain.BounceComplaint

	cases := []struct {
		name   string
		c      domain.Contact
		want   domain.SuppressionReason
		wantOK bool
	}{
		{"hard bounce always", domain.Contact{BounceCount: 1, LastBounceType: &hard}, domain.ReasonHardBounce, true},
		{"complaint always", domain.Contact{BounceCount: 1, LastBounceType: &complaint}, domain.ReasonComplaint, true},
		{"soft below threshold", domain.Contact{BounceCount: 2, LastBounceType: &soft}, "", false},
		{"soft at threshold", domain.Contact{BounceCount: 3, LastBounceType: &soft}, domain.ReasonSoftBounceExceeded, true},
		{"no bounces", domain.Contact{}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := eng.Classify(&tc.c)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("Classify() = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestStats_GroupsByReason(t *testing.T) {
	eng, _, contacts, _, _ := newTestEngine()
	contacts.add("c-1", "a@example.com")
	contacts.add("c-2", "b@example.com")
	contacts.add("c-3", "c@example.com")
	ctx := context.Background()

	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-1", Reason: domain.ReasonHardBounce})
	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-2", Reason: domain.ReasonHardBounce})
	_ = eng.Suppress(ctx, domain.SuppressionRequest{ContactID: "c-3", Reason: domain.ReasonComplaint})

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["hard_bounce"] != 2 || stats["spam_complaint"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}
