package patient

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `patient_id, patient_first_name, patient_last_name, date_of_birth, gender,
	phone_number, email, address, prescription, blood_group, is_vyasa`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.PatientID, &p.PatientFirstName, &p.PatientLastName, &p.DateOfBirth.Time, &p.Gender,
		&p.PhoneNumber, &p.Email, &p.Address, &p.Prescription, &p.BloodGroup, &p.IsVyasa)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			patient_first_name, patient_last_name, date_of_birth, gender,
			phone_number, email, address, prescription, blood_group, is_vyasa
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING patient_id`,
		p.PatientFirstName, p.PatientLastName, p.DateOfBirth.Time, p.Gender,
		p.PhoneNumber, p.Email, p.Address, p.Prescription, p.BloodGroup, p.IsVyasa,
	).Scan(&p.PatientID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient %d not found", id)
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY patient_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
