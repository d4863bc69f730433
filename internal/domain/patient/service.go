package patient

import (
	"context"
	"strings"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, req CreateRequest) (*Patient, error) {
	p := &Patient{
		PatientFirstName: strings.TrimSpace(req.PatientFirstName),
		PatientLastName:  strings.TrimSpace(req.PatientLastName),
		Gender:           strings.TrimSpace(req.Gender),
		PhoneNumber:      strings.TrimSpace(req.PhoneNumber),
		Email:            strings.TrimSpace(req.Email),
		Address:          strings.TrimSpace(req.Address),
		Prescription:     req.Prescription,
		BloodGroup:       strings.TrimSpace(req.BloodGroup),
		IsVyasa:          req.IsVyasa,
	}

	var missing []string
	if p.PatientFirstName == "" {
		missing = append(missing, "patientFirstName")
	}
	if strings.TrimSpace(req.DateOfBirth) == "" {
		missing = append(missing, "dateOfBirth")
	}
	if p.Gender == "" {
		missing = append(missing, "gender")
	}
	if p.PhoneNumber == "" {
		missing = append(missing, "phoneNumber")
	}
	if p.BloodGroup == "" {
		missing = append(missing, "bloodGroup")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	dob, err := ParseDate(req.DateOfBirth)
	if err != nil {
		return nil, apperr.Validation("dateOfBirth must be YYYY-MM-DD or RFC 3339")
	}
	p.DateOfBirth = dob

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Patient{}
	}
	return items, total, nil
}
