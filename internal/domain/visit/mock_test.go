package visit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

type mockPatient struct {
	first, last, gender, address, phone string
	dob                                 time.Time
}

type mockState struct {
	visits map[int64]*Visit
	vitals map[int64]*Vitals // keyed by visit
	rx     map[int64]*Prescription
	meds   map[int64][]Medicine // keyed by prescription
	nextID int64
}

func (s *mockState) clone() *mockState {
	c := &mockState{
		visits: make(map[int64]*Visit, len(s.visits)),
		vitals: make(map[int64]*Vitals, len(s.vitals)),
		rx:     make(map[int64]*Prescription, len(s.rx)),
		meds:   make(map[int64][]Medicine, len(s.meds)),
		nextID: s.nextID,
	}
	for k, v := range s.visits {
		cp := *v
		c.visits[k] = &cp
	}
	for k, v := range s.vitals {
		cp := *v
		c.vitals[k] = &cp
	}
	for k, v := range s.rx {
		cp := *v
		c.rx[k] = &cp
	}
	for k, v := range s.meds {
		c.meds[k] = append([]Medicine(nil), v...)
	}
	return c
}

// mockRepo is an in-memory Repository. InTx snapshots the state and restores
// it when fn fails, so tests can observe rollbacks. failOn injects an error
// into the named method.
type mockRepo struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	st       *mockState
	patients map[int64]mockPatient
	failOn   map[string]error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		st: &mockState{
			visits: map[int64]*Visit{},
			vitals: map[int64]*Vitals{},
			rx:     map[int64]*Prescription{},
			meds:   map[int64][]Medicine{},
			nextID: 1,
		},
		patients: map[int64]mockPatient{
			1: {first: "John", last: "Doe", gender: "Male", phone: "1234567890", address: "12 High St",
				dob: time.Date(1985, 5, 20, 0, 0, 0, 0, time.UTC)},
		},
		failOn: map[string]error{},
	}
}

func (m *mockRepo) fail(method string) error {
	return m.failOn[method]
}

func (m *mockRepo) id() int64 {
	id := m.st.nextID
	m.st.nextID++
	return id
}

func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := m.st.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.st = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepo) CreateVisit(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateVisit"); err != nil {
		return err
	}
	if _, ok := m.patients[v.PatientID]; !ok {
		return apperr.NotFound("patient %d not found", v.PatientID)
	}
	v.VisitID = m.id()
	cp := *v
	m.st.visits[v.VisitID] = &cp
	return nil
}

func (m *mockRepo) GetVisitForUpdate(_ context.Context, id int64) (*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.st.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit %d not found", id)
	}
	cp := *v
	return &cp, nil
}

func (m *mockRepo) UpdateVisitStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateVisitStatus"); err != nil {
		return err
	}
	v, ok := m.st.visits[id]
	if !ok {
		return apperr.NotFound("visit %d not found", id)
	}
	v.Status = status
	return nil
}

func (m *mockRepo) UpdateVisitClinical(_ context.Context, id int64, complaints, diagnosis, tests []string, advice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.st.visits[id]
	if !ok {
		return apperr.NotFound("visit %d not found", id)
	}
	v.Complaints, v.Diagnosis, v.Tests, v.Advice = complaints, diagnosis, tests, advice
	return nil
}

func (m *mockRepo) SetVisitAttachment(_ context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.st.visits[id]
	if !ok {
		return apperr.NotFound("visit %d not found", id)
	}
	v.AttachmentPath = &path
	return nil
}

func (m *mockRepo) ListVisits(_ context.Context, f ListFilter) ([]*ListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ListItem
	for _, v := range m.st.visits {
		if f.DoctorName != "" && !strings.EqualFold(strings.TrimSpace(v.ConsultantDoctorName), f.DoctorName) {
			continue
		}
		if f.PatientID != 0 && v.PatientID != f.PatientID {
			continue
		}
		if f.Day != nil {
			y, mo, d := v.CreatedAt.UTC().Date()
			fy, fmo, fd := f.Day.Date()
			if y != fy || mo != fmo || d != fd {
				continue
			}
		}
		p := m.patients[v.PatientID]
		item := &ListItem{Visit: *v, PatientName: strings.TrimSpace(p.first + " " + p.last), Medicines: []Medicine{}}
		if vt, ok := m.st.vitals[v.VisitID]; ok {
			cp := *vt
			item.Vitals = &cp
		}
		for _, rx := range m.st.rx {
			if rx.VisitID == v.VisitID {
				item.Medicines = append(item.Medicines, m.st.meds[rx.PrescriptionID]...)
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].VisitID > out[j].VisitID
	})
	return out, nil
}

func (m *mockRepo) InsertVitals(_ context.Context, v *Vitals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.vitals[v.VisitID]; ok {
		return apperr.Conflict("vitals already recorded for visit %d", v.VisitID)
	}
	v.VitalsID = m.id()
	cp := *v
	m.st.vitals[v.VisitID] = &cp
	return nil
}

func (m *mockRepo) GetVitalsByVisit(_ context.Context, visitID int64) (*Vitals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.st.vitals[visitID]
	if !ok {
		return nil, apperr.NotFound("no vitals recorded for visit %d", visitID)
	}
	cp := *v
	return &cp, nil
}

func (m *mockRepo) InsertPrescription(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rx := range m.st.rx {
		if rx.VisitID == p.VisitID {
			return apperr.Conflict("prescription already exists for visit %d", p.VisitID)
		}
	}
	p.PrescriptionID = m.id()
	cp := *p
	m.st.rx[p.PrescriptionID] = &cp
	return nil
}

func (m *mockRepo) GetPrescriptionForUpdate(_ context.Context, id int64) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.rx[id]
	if !ok {
		return nil, apperr.NotFound("prescription %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetPrescriptionByVisitForUpdate(_ context.Context, visitID int64) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.rx {
		if p.VisitID == visitID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("no prescription for visit %d", visitID)
}

func (m *mockRepo) UpdatePrescriptionDraft(_ context.Context, id int64, notes string, attachmentPath *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.rx[id]
	if !ok || p.IsSigned {
		return apperr.Conflict("prescription %d is already signed", id)
	}
	p.Notes = notes
	if attachmentPath != nil {
		p.AttachmentPath = attachmentPath
	}
	return nil
}

func (m *mockRepo) ReplaceMedicines(_ context.Context, prescriptionID int64, meds []Medicine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReplaceMedicines"); err != nil {
		return err
	}
	out := make([]Medicine, 0, len(meds))
	for _, md := range meds {
		md.MedicineID = m.id()
		md.PrescriptionID = prescriptionID
		out = append(out, md)
	}
	m.st.meds[prescriptionID] = out
	return nil
}

func (m *mockRepo) MarkSigned(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.rx[id]
	if !ok {
		return apperr.NotFound("prescription %d not found", id)
	}
	p.IsSigned = true
	p.SignedAt = &at
	return nil
}

func (m *mockRepo) MarkDispensed(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.rx[id]
	if !ok {
		return apperr.NotFound("prescription %d not found", id)
	}
	p.IsDispensed = true
	p.DispensedAt = &at
	return nil
}

func (m *mockRepo) SetPrescriptionAttachment(_ context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.rx[id]
	if !ok {
		return apperr.NotFound("prescription %d not found", id)
	}
	p.AttachmentPath = &path
	return nil
}

func (m *mockRepo) ListPrescriptions(_ context.Context, signedOnly bool) ([]*PrescriptionListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PrescriptionListItem
	for _, p := range m.st.rx {
		if signedOnly && !p.IsSigned {
			continue
		}
		v := m.st.visits[p.VisitID]
		pt := m.patients[v.PatientID]
		item := &PrescriptionListItem{Prescription: *p}
		item.Medicines = append([]Medicine{}, m.st.meds[p.PrescriptionID]...)
		item.Visit = PrescriptionVisit{
			PatientID:            v.PatientID,
			PatientFirstName:     pt.first,
			PatientLastName:      pt.last,
			Gender:               pt.gender,
			PatientAddress:       pt.address,
			PatientPhone:         pt.phone,
			ConsultantDoctorName: v.ConsultantDoctorName,
			DateOfBirth:          pt.dob,
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PrescriptionID > out[j].PrescriptionID
	})
	return out, nil
}
