package visit

import (
	"context"
	"time"
)

// Repository persists visits and their vitals, prescriptions and
// medicines. Methods ending in ForUpdate lock the row until the surrounding
// transaction ends.
type Repository interface {
	// InTx runs fn in a transaction; repository calls made with the ctx
	// passed to fn take part in it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateVisit(ctx context.Context, v *Visit) error
	GetVisitForUpdate(ctx context.Context, id int64) (*Visit, error)
	UpdateVisitStatus(ctx context.Context, id int64, status string) error
	UpdateVisitClinical(ctx context.Context, id int64, complaints, diagnosis, tests []string, advice string) error
	SetVisitAttachment(ctx context.Context, id int64, path string) error
	ListVisits(ctx context.Context, f ListFilter) ([]*ListItem, error)

	InsertVitals(ctx context.Context, v *Vitals) error
	GetVitalsByVisit(ctx context.Context, visitID int64) (*Vitals, error)

	InsertPrescription(ctx context.Context, p *Prescription) error
	GetPrescriptionForUpdate(ctx context.Context, id int64) (*Prescription, error)
	GetPrescriptionByVisitForUpdate(ctx context.Context, visitID int64) (*Prescription, error)
	UpdatePrescriptionDraft(ctx context.Context, id int64, notes string, attachmentPath *string) error
	ReplaceMedicines(ctx context.Context, prescriptionID int64, meds []Medicine) error
	MarkSigned(ctx context.Context, id int64, at time.Time) error
	MarkDispensed(ctx context.Context, id int64, at time.Time) error
	SetPrescriptionAttachment(ctx context.Context, id int64, path string) error
	ListPrescriptions(ctx context.Context, signedOnly bool) ([]*PrescriptionListItem, error)
}
