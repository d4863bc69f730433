package patient

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

type mockRepo struct {
	mu     sync.Mutex
	store  map[int64]*Patient
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[int64]*Patient), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.PatientID = m.nextID
	m.nextID++
	cp := *p
	m.store[p.PatientID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("patient %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, p := range m.store {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PatientID < all[j].PatientID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

func johnDoe() CreateRequest {
	return CreateRequest{
		PatientFirstName: "John",
		PatientLastName:  "Doe",
		DateOfBirth:      "1985-05-20",
		Gender:           "Male",
		PhoneNumber:      "1234567890",
		Email:            "john.doe@example.com",
		BloodGroup:       "O+",
	}
}

func TestService_CreateAndGetRoundTrip(t *testing.T) {
	svc := newTestService()
	created, err := svc.CreatePatient(context.Background(), johnDoe())
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if created.PatientID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := svc.GetPatient(context.Background(), created.PatientID)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if got.PatientFirstName != "John" || got.PatientLastName != "Doe" || got.BloodGroup != "O+" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.DateOfBirth.Format("2006-01-02") != "1985-05-20" {
		t.Errorf("unexpected dob %s", got.DateOfBirth)
	}
}

func TestService_CreatePatient_MissingFields(t *testing.T) {
	svc := newTestService()
	req := johnDoe()
	req.PatientFirstName = " "
	req.BloodGroup = ""

	_, err := svc.CreatePatient(context.Background(), req)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if msg := apperr.PublicMessage(err); msg != "missing required fields: patientFirstName, bloodGroup" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestService_CreatePatient_BadDate(t *testing.T) {
	svc := newTestService()
	req := johnDoe()
	req.DateOfBirth = "20/05/1985"
	if _, err := svc.CreatePatient(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_GetPatient_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetPatient(context.Background(), 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ListPatients_Empty(t *testing.T) {
	svc := newTestService()
	items, total, err := svc.ListPatients(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if items == nil || len(items) != 0 || total != 0 {
		t.Errorf("expected empty non-nil list, got %v %d", items, total)
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"1985-05-20", "1985-05-20T00:00:00Z", "1985-05-20T23:30:00+05:30"} {
		d, err := ParseDate(in)
		if err != nil {
			t.Errorf("%s: %v", in, err)
			continue
		}
		if d.Format("2006-01-02") != "1985-05-20" {
			t.Errorf("%s: got %s", in, d.Format("2006-01-02"))
		}
	}
	if _, err := ParseDate("yesterday"); err == nil {
		t.Error("expected error for garbage date")
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	in := Patient{PatientFirstName: "John", DateOfBirth: Date{time.Date(1985, 5, 20, 0, 0, 0, 0, time.UTC)}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Patient
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if !out.DateOfBirth.Equal(in.DateOfBirth.Time) {
		t.Errorf("expected %s, got %s", in.DateOfBirth.Format(dateLayout), out.DateOfBirth.Format(dateLayout))
	}

	var empty Patient
	if err := json.Unmarshal([]byte(`{"dateOfBirth":null}`), &empty); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !empty.DateOfBirth.IsZero() {
		t.Errorf("expected zero date for null, got %v", empty.DateOfBirth)
	}
	if err := json.Unmarshal([]byte(`{"dateOfBirth":"20/05/1985"}`), &empty); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestAge(t *testing.T) {
	dob := time.Date(1985, 5, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		on   time.Time
		want int
	}{
		{time.Date(2026, 5, 19, 0, 0, 0, 0, time.UTC), 40},
		{time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), 41},
		{time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), 41},
		{time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := Age(dob, tt.on); got != tt.want {
			t.Errorf("Age on %s = %d, want %d", tt.on.Format("2006-01-02"), got, tt.want)
		}
	}
	if Age(time.Time{}, time.Now()) != 0 {
		t.Error("expected 0 for unknown dob")
	}
}
