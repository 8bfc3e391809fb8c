package list

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// mockRepo is an in-memory repository for testing. Positions advance under
// the repo mutex, matching the single-counter-advance contract.
type mockRepo struct {
	mu          sync.Mutex
	lists       map[string]*domain.ContactList
	memberships map[string]*domain.ListMembership // keyed by contactID|listID
	nextPos     map[string]int64
	nextID      int
	bounced     map[string]bool // contactID -> has bounced
	hard        map[string]bool // contactID -> hard bounce or suppressed
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		lists:       make(map[string]*domain.ContactList),
		memberships: make(map[string]*domain.ListMembership),
		nextPos:     make(map[string]int64),
		bounced:     make(map[string]bool),
		hard:        make(map[string]bool),
	}
}

func (m *mockRepo) addList(id string, round int) {
	m.lists[id] = &domain.ContactList{
		ID:          id,
		Name:        id,
		Type:        domain.ListCampaignRound,
		RoundNumber: &round,
	}
}

func key(contactID, listID string) string { return contactID + "|" + listID }

func (m *mockRepo) GetList(_ context.Context, listID string) (*domain.ContactList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		return nil, ErrListNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockRepo) CreateList(_ context.Context, l *domain.ContactList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lists {
		if existing.Type == domain.ListCampaignRound && !existing.Retired &&
			l.RoundNumber != nil && existing.RoundNumber != nil &&
			*existing.RoundNumber == *l.RoundNumber {
			return ErrDuplicateRound
		}
	}
	m.nextID++
	l.ID = fmt.Sprintf("list-%03d", m.nextID)
	m.lists[l.ID] = l
	return nil
}

func (m *mockRepo) ActiveRoundLists(_ context.Context) ([]domain.ContactList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContactList
	for _, l := range m.lists {
		if l.Type == domain.ListCampaignRound && !l.Retired {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockRepo) GetMembership(_ context.Context, contactID, listID string) (*domain.ListMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.memberships[key(contactID, listID)]
	if !ok {
		return nil, ErrMembershipNotFound
	}
	cp := *mm
	return &cp, nil
}

func (m *mockRepo) AppendMembership(_ context.Context, contactID, listID string) (*domain.ListMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPos[listID]++
	m.nextID++
	mm := &domain.ListMembership{
		ID:        fmt.Sprintf("m-%04d", m.nextID),
		ContactID: contactID,
		ListID:    listID,
		Position:  m.nextPos[listID],
		IsActive:  true,
		AddedAt:   time.Now().UTC(),
	}
	m.memberships[key(contactID, listID)] = mm
	cp := *mm
	return &cp, nil
}

func (m *mockRepo) ReactivateMembership(_ context.Context, membershipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mm := range m.memberships {
		if mm.ID == membershipID {
			mm.IsActive = true
			mm.RemovedAt = nil
			return nil
		}
	}
	return ErrMembershipNotFound
}

func (m *mockRepo) DeactivateMembership(_ context.Context, contactID, listID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.memberships[key(contactID, listID)]
	if !ok || !mm.IsActive {
		return ErrMembershipNotFound
	}
	now := time.Now().UTC()
	mm.IsActive = false
	mm.RemovedAt = &now
	return nil
}

func (m *mockRepo) ActiveMembers(_ context.Context, listID string, limit, offset int) ([]domain.ListMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ListMembership
	for _, mm := range m.memberships {
		if mm.ListID == listID && mm.IsActive {
			out = append(out, *mm)
		}
	}
	// insertion sort by position; datasets in tests are small
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Position > out[j].Position; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) CountActiveMembers(_ context.Context, listID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mm := range m.memberships {
		if mm.ListID == listID && mm.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) CountBouncedMembers(_ context.Context, listID string) (bounced, hard int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mm := range m.memberships {
		if mm.ListID != listID || !mm.IsActive {
			continue
		}
		if m.bounced[mm.ContactID] {
			bounced++
		}
		if m.hard[mm.ContactID] {
			hard++
		}
	}
	return bounced, hard, nil
}

func (m *mockRepo) UpdateListMetrics(_ context.Context, listID string, count int, bounceRate, deliveryRate, healthScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lists[listID]; ok {
		l.ContactCount = count
		l.BounceRate = bounceRate
		l.DeliveryRate = deliveryRate
		l.HealthScore = healthScore
	}
	return nil
}

// mockContacts assigns ids by order of first sighting.
type mockContacts struct {
	mu     sync.Mutex
	byMail map[string]*domain.Contact
	next   int
}

func newMockContacts() *mockContacts {
	return &mockContacts{byMail: make(map[string]*domain.Contact)}
}

func (m *mockContacts) CreateOrGet(_ context.Context, email, externalID string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if c, ok := m.byMail[email]; ok {
		return c, nil
	}
	m.next++
	c := &domain.Contact{
		ID:         fmt.Sprintf("c-%04d", m.next),
		Email:      email,
		ExternalID: externalID,
		Status:     domain.ContactActive,
	}
	m.byMail[email] = c
	return c, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	repo.addList("round-1", 1)
	repo.addList("round-2", 2)
	return NewService(repo, newMockContacts(), nil), repo
}

func TestAddContact_AppendsInFIFOOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.AddContact(ctx, fmt.Sprintf("c-%d", i), "round-1"); err != nil {
			t.Fatalf("AddContact #%d: %v", i, err)
		}
	}

	members, err := svc.Contacts(ctx, "round-1", 1, 100)
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(members) != 5 {
		t.Fatalf("expected 5 members, got %d", len(members))
	}
	for i := 1; i < len(members); i++ {
		if members[i].Position <= members[i-1].Position {
			t.Errorf("positions not strictly increasing at index %d", i)
		}
	}
	if members[0].ContactID != "c-0" || members[4].ContactID != "c-4" {
		t.Error("FIFO order does not match insertion order")
	}
}

func TestAddContact_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.AddContact(ctx, "c-1", "round-1")
	if err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	second, err := svc.AddContact(ctx, "c-1", "round-1")
	if err != nil {
		t.Fatalf("AddContact repeat: %v", err)
	}

	if second.ID != first.ID || second.Position != first.Position {
		t.Errorf("repeat add changed membership: %+v vs %+v", first, second)
	}

	members, _ := svc.Contacts(ctx, "round-1", 1, 100)
	if len(members) != 1 {
		t.Errorf("expected exactly one active membership, got %d", len(members))
	}
}

func TestAddContact_ReactivationKeepsPosition(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _ = svc.AddContact(ctx, "c-1", "round-1")
	original, _ := svc.AddContact(ctx, "c-2", "round-1")
	_, _ = svc.AddContact(ctx, "c-3", "round-1")

	if err := svc.RemoveContact(ctx, "c-2", "round-1"); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	back, err := svc.AddContact(ctx, "c-2", "round-1")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}

	if back.ID != original.ID {
		t.Error("re-add created a duplicate membership row")
	}
	if back.Position != original.Position {
		t.Errorf("reactivation changed position: %d -> %d", original.Position, back.Position)
	}

	members, _ := svc.Contacts(ctx, "round-1", 1, 100)
	order := []string{members[0].ContactID, members[1].ContactID, members[2].ContactID}
	if order[0] != "c-1" || order[1] != "c-2" || order[2] != "c-3" {
		t.Errorf("relative order lost after remove+re-add: %v", order)
	}
}

func TestRemoveContact_NeverRenumbers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = svc.AddContact(ctx, fmt.Sprintf("c-%d", i), "round-1")
	}
	before, _ := svc.Contacts(ctx, "round-1", 1, 100)
	posByContact := map[string]int64{}
	for _, m := range before {
		posByContact[m.ContactID] = m.Position
	}

	_ = svc.RemoveContact(ctx, "c-2", "round-1")
	_ = svc.RemoveContact(ctx, "c-3", "round-1")

	after, _ := svc.Contacts(ctx, "round-1", 1, 100)
	if len(after) != 4 {
		t.Fatalf("expected 4 survivors, got %d", len(after))
	}
	for _, m := range after {
		if m.Position != posByContact[m.ContactID] {
			t.Errorf("contact %s was renumbered: %d -> %d",
				m.ContactID, posByContact[m.ContactID], m.Position)
		}
	}
}

func TestRemoveContact_RecomputesCount(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = svc.AddContact(ctx, fmt.Sprintf("c-%d", i), "round-1")
	}
	_ = svc.RemoveContact(ctx, "c-0", "round-1")

	l, _ := repo.GetList(ctx, "round-1")
	if l.ContactCount != 2 {
		t.Errorf("expected recomputed count 2, got %d", l.ContactCount)
	}
}

func TestRemoveContact_RecomputesRates(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = svc.AddContact(ctx, fmt.Sprintf("c-%d", i), "round-1")
	}
	repo.bounced["c-1"] = true // soft bouncer
	repo.bounced["c-2"] = true // hard bouncer
	repo.hard["c-2"] = true

	_ = svc.RemoveContact(ctx, "c-4", "round-1")

	// 4 members left, 2 bounced, 1 hard: 50% bounce, 50% delivery,
	// health 100 - (2+1)/4*100 = 25.
	l, _ := repo.GetList(ctx, "round-1")
	if l.BounceRate != 50 || l.DeliveryRate != 50 {
		t.Errorf("rates = %.1f/%.1f, want 50/50", l.BounceRate, l.DeliveryRate)
	}
	if l.HealthScore != 25 {
		t.Errorf("health score = %.1f, want 25", l.HealthScore)
	}
}

func TestBulkImport_PartialFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	records := make([]domain.ImportRecord, 0, 10)
	for i := 0; i < 10; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		if i == 4 {
			email = "not-an-email"
		}
		records = append(records, domain.ImportRecord{Email: email})
	}

	result, err := svc.BulkImport(ctx, "round-1", records)
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if result.Imported != 9 || result.Failed != 1 {
		t.Errorf("expected 9 imported / 1 failed, got %d / %d", result.Imported, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 4 {
		t.Errorf("expected one error at index 4, got %+v", result.Errors)
	}

	members, _ := svc.Contacts(ctx, "round-1", 1, 100)
	if len(members) != 9 {
		t.Errorf("expected 9 persisted members, got %d", len(members))
	}
}

func TestBulkImport_DuplicateEmailsCollapse(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	records := []domain.ImportRecord{
		{Email: "dup@example.com"},
		{Email: "DUP@example.com"},
	}
	// The contact directory normalizes; both rows resolve to one contact,
	// and the second add is a no-op on the same membership.
	result, err := svc.BulkImport(ctx, "round-1", records)
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if result.Failed != 0 {
		t.Errorf("duplicate import rows must not fail, got %d failures", result.Failed)
	}

	members, _ := svc.Contacts(ctx, "round-1", 1, 100)
	if len(members) != 1 {
		t.Errorf("expected one active membership for duplicate emails, got %d", len(members))
	}
}

func TestBulkImport_UnknownList(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.BulkImport(context.Background(), "nope", nil); err != ErrListNotFound {
		t.Errorf("expected ErrListNotFound, got %v", err)
	}
}

func TestContacts_Pagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, _ = svc.AddContact(ctx, fmt.Sprintf("c-%02d", i), "round-1")
	}

	page3, err := svc.Contacts(ctx, "round-1", 3, 10)
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(page3) != 5 {
		t.Fatalf("expected 5 members on page 3, got %d", len(page3))
	}
	if page3[0].ContactID != "c-20" {
		t.Errorf("expected page 3 to start at c-20, got %s", page3[0].ContactID)
	}
}

func TestCreateRoundList_RejectsDuplicateRound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateRoundList(ctx, "round one again", 1); err != ErrDuplicateRound {
		t.Errorf("expected ErrDuplicateRound, got %v", err)
	}
	if _, err := svc.CreateRoundList(ctx, "round three", 3); err != nil {
		t.Errorf("round 3 should be free: %v", err)
	}
}
