package visit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/domain/patient"
	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/auth"
	"github.com/careconnect/clinic/internal/platform/metrics"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error) {
	if req.PatientID <= 0 {
		return nil, apperr.Validation("patientId is required")
	}
	priority, ok := normalizePriority(req.Priority)
	if !ok {
		return nil, apperr.Validation("priority must be %q or %q", PriorityNormal, PriorityEmergency)
	}

	v := &Visit{
		PatientID:            req.PatientID,
		ConsultantDoctorName: strings.TrimSpace(req.ConsultantDoctorName),
		Priority:             priority,
		Status:               StatusPending,
		CreatedAt:            s.now(),
		Complaints:           StringList{},
		Diagnosis:            StringList{},
		Tests:                StringList{},
	}
	if err := s.repo.CreateVisit(ctx, v); err != nil {
		return nil, err
	}
	metrics.RecordVisitTransition(v.Status)
	return v, nil
}

// UpdateStatus moves a visit forward. Setting the current status again is
// a no-op; moving backwards is a conflict.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Visit, error) {
	if !ValidStatus(status) {
		return nil, apperr.Validation("unknown visit status %q", status)
	}

	var out *Visit
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetVisitForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case v.Status == status:
			out = v
			return nil
		case statusRank[status] < statusRank[v.Status]:
			return apperr.Conflict("visit %d cannot move from %q back to %q", id, v.Status, status)
		}
		if err := s.repo.UpdateVisitStatus(ctx, id, status); err != nil {
			return err
		}
		v.Status = status
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordVisitTransition(out.Status)
	return out, nil
}

func (s *Service) RecordVitals(ctx context.Context, req RecordVitalsRequest) (*Vitals, error) {
	if req.VisitID <= 0 {
		return nil, apperr.Validation("visitId is required")
	}
	vt := &Vitals{
		VisitID:       req.VisitID,
		BloodPressure: strings.TrimSpace(req.BloodPressure),
		Pulse:         strings.TrimSpace(req.Pulse),
		Temperature:   strings.TrimSpace(req.Temperature),
		SpO2:          strings.TrimSpace(req.SpO2),
		Weight:        strings.TrimSpace(req.Weight),
		Height:        strings.TrimSpace(req.Height),
		BMI:           strings.TrimSpace(req.BMI),
	}

	advanced := false
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetVisitForUpdate(ctx, req.VisitID)
		if err != nil {
			return err
		}
		if err := s.repo.InsertVitals(ctx, vt); err != nil {
			return err
		}
		if statusRank[v.Status] < statusRank[StatusVitalsRecorded] {
			advanced = true
			return s.repo.UpdateVisitStatus(ctx, v.VisitID, StatusVitalsRecorded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if advanced {
		metrics.RecordVisitTransition(StatusVitalsRecorded)
	}
	return vt, nil
}

func (s *Service) GetVitals(ctx context.Context, visitID int64) (*Vitals, error) {
	return s.repo.GetVitalsByVisit(ctx, visitID)
}

// SavePrescription stores the doctor's consultation: the visit's clinical
// fields plus a draft prescription. It creates the prescription on first
// save and replaces the draft afterwards. Signed prescriptions are frozen.
func (s *Service) SavePrescription(ctx context.Context, req SavePrescriptionRequest) (*SaveResult, error) {
	if req.VisitID <= 0 {
		return nil, apperr.Validation("visitId is required")
	}
	meds := make([]Medicine, 0, len(req.Medicines))
	for i, m := range req.Medicines {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, apperr.Validation("medicine %d has no name", i+1)
		}
		meds = append(meds, Medicine{
			Name:      name,
			Dosage:    strings.TrimSpace(m.Dosage),
			Frequency: strings.TrimSpace(m.Frequency),
			Duration:  strings.TrimSpace(m.Duration),
		})
	}
	notes := strings.TrimSpace(req.Notes)
	attachment := req.AttachmentPath
	if attachment != nil && strings.TrimSpace(*attachment) == "" {
		attachment = nil
	}

	res := &SaveResult{}
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetVisitForUpdate(ctx, req.VisitID)
		if err != nil {
			return err
		}
		err = s.repo.UpdateVisitClinical(ctx, v.VisitID,
			compact(req.ChiefComplaints), compact(req.Diagnosis), compact(req.LabInvestigations), notes)
		if err != nil {
			return err
		}

		p, err := s.repo.GetPrescriptionByVisitForUpdate(ctx, v.VisitID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			p = &Prescription{
				VisitID:        v.VisitID,
				Notes:          notes,
				AttachmentPath: attachment,
				CreatedAt:      s.now(),
			}
			if err := s.repo.InsertPrescription(ctx, p); err != nil {
				return err
			}
			res.Created = true
		case err != nil:
			return err
		case p.IsSigned:
			return apperr.Conflict("prescription %d is already signed", p.PrescriptionID)
		default:
			if err := s.repo.UpdatePrescriptionDraft(ctx, p.PrescriptionID, notes, attachment); err != nil {
				return err
			}
		}
		res.ID = p.PrescriptionID
		return s.repo.ReplaceMedicines(ctx, p.PrescriptionID, meds)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPrescriptionEvent("saved")
	return res, nil
}

// SignOff signs a prescription and completes its visit in one transaction.
func (s *Service) SignOff(ctx context.Context, id int64) error {
	signed := false
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPrescriptionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.IsSigned {
			return nil
		}
		if err := s.repo.MarkSigned(ctx, id, s.now()); err != nil {
			return err
		}
		signed = true
		return s.repo.UpdateVisitStatus(ctx, p.VisitID, StatusCompleted)
	})
	if err != nil {
		return err
	}
	if signed {
		metrics.RecordPrescriptionEvent("signed")
		metrics.RecordVisitTransition(StatusCompleted)
		zerolog.Ctx(ctx).Info().Int64("prescription_id", id).Str("signed_by", auth.EmailFromContext(ctx)).Msg("prescription signed")
	}
	return nil
}

func (s *Service) Dispense(ctx context.Context, id int64) error {
	dispensed := false
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPrescriptionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsSigned {
			return apperr.Conflict("prescription %d has not been signed", id)
		}
		if p.IsDispensed {
			return nil
		}
		dispensed = true
		return s.repo.MarkDispensed(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	if dispensed {
		metrics.RecordPrescriptionEvent("dispensed")
	}
	return nil
}

func (s *Service) AttachToVisit(ctx context.Context, visitID int64, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return apperr.Validation("attachmentPath is required")
	}
	return s.repo.SetVisitAttachment(ctx, visitID, path)
}

func (s *Service) AttachToPrescription(ctx context.Context, id int64, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return apperr.Validation("attachmentPath is required")
	}
	return s.repo.SetPrescriptionAttachment(ctx, id, path)
}

func (s *Service) ListVisits(ctx context.Context, f ListFilter) ([]*ListItem, error) {
	f.DoctorName = strings.TrimSpace(f.DoctorName)
	items, err := s.repo.ListVisits(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ListItem{}
	}
	return items, nil
}

// ListPrescriptions returns every prescription to doctors and only signed
// ones to everyone else.
func (s *Service) ListPrescriptions(ctx context.Context) ([]*PrescriptionListItem, error) {
	items, err := s.repo.ListPrescriptions(ctx, !auth.HasRole(ctx, auth.RoleDoctor))
	if err != nil {
		return nil, err
	}
	if items == nil {
		return []*PrescriptionListItem{}, nil
	}
	today := s.now()
	for _, it := range items {
		if !it.Visit.DateOfBirth.IsZero() {
			it.Visit.PatientAge = patient.Age(it.Visit.DateOfBirth, today)
		}
		if it.Medicines == nil {
			it.Medicines = []Medicine{}
		}
	}
	return items, nil
}
