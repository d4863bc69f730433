package visit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// -- Visits --

const visitCols = `v.visit_id, v.patient_id, v.consultant_doctor_name, v.priority, v.status, v.created_at,
	v.attachment_path, v.complaints, v.diagnosis, v.tests, v.advice`

func visitDest(v *Visit) []interface{} {
	return []interface{}{
		&v.VisitID, &v.PatientID, &v.ConsultantDoctorName, &v.Priority, &v.Status, &v.CreatedAt,
		&v.AttachmentPath, (*[]string)(&v.Complaints), (*[]string)(&v.Diagnosis), (*[]string)(&v.Tests), &v.Advice,
	}
}

func (r *repoPG) CreateVisit(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visits (patient_id, consultant_doctor_name, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING visit_id`,
		v.PatientID, v.ConsultantDoctorName, v.Priority, v.Status, v.CreatedAt,
	).Scan(&v.VisitID)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("patient %d not found", v.PatientID)
	}
	return err
}

func (r *repoPG) GetVisitForUpdate(ctx context.Context, id int64) (*Visit, error) {
	var v Visit
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits v WHERE v.visit_id = $1 FOR UPDATE`, id).
		Scan(visitDest(&v)...)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("visit %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) UpdateVisitStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE visits SET status = $2 WHERE visit_id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("visit %d not found", id)
	}
	return nil
}

func (r *repoPG) UpdateVisitClinical(ctx context.Context, id int64, complaints, diagnosis, tests []string, advice string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visits SET complaints = $2, diagnosis = $3, tests = $4, advice = $5
		WHERE visit_id = $1`,
		id, nonNil(complaints), nonNil(diagnosis), nonNil(tests), advice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("visit %d not found", id)
	}
	return nil
}

func (r *repoPG) SetVisitAttachment(ctx context.Context, id int64, path string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE visits SET attachment_path = $2 WHERE visit_id = $1`, id, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("visit %d not found", id)
	}
	return nil
}

func (r *repoPG) ListVisits(ctx context.Context, f ListFilter) ([]*ListItem, error) {
	query := `
		SELECT ` + visitCols + `,
			btrim(p.patient_first_name || ' ' || p.patient_last_name),
			vt.vitals_id, vt.blood_pressure, vt.pulse, vt.temperature, vt.spo2, vt.weight, vt.height, vt.bmi
		FROM visits v
		JOIN patients p ON p.patient_id = v.patient_id
		LEFT JOIN vitals vt ON vt.visit_id = v.visit_id
		WHERE ($1::text = '' OR lower(btrim(v.consultant_doctor_name)) = lower($1))
		  AND ($2::bigint = 0 OR v.patient_id = $2::bigint)
		  AND ($3::timestamptz IS NULL OR (v.created_at >= $3 AND v.created_at < $3 + interval '1 day'))
		ORDER BY v.created_at DESC, v.visit_id DESC`

	var day *time.Time
	if f.Day != nil {
		d := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
		day = &d
	}

	rows, err := r.conn(ctx).Query(ctx, query, f.DoctorName, f.PatientID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		items []*ListItem
		ids   []int64
	)
	for rows.Next() {
		item := &ListItem{}
		var (
			vitalsID                                   *int64
			bp, pulse, temp, spo2, weight, height, bmi *string
		)
		dest := append(visitDest(&item.Visit), &item.PatientName,
			&vitalsID, &bp, &pulse, &temp, &spo2, &weight, &height, &bmi)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if vitalsID != nil {
			item.Vitals = &Vitals{
				VitalsID: *vitalsID, VisitID: item.VisitID,
				BloodPressure: deref(bp), Pulse: deref(pulse), Temperature: deref(temp), SpO2: deref(spo2),
				Weight: deref(weight), Height: deref(height), BMI: deref(bmi),
			}
		}
		item.Medicines = []Medicine{}
		items = append(items, item)
		ids = append(ids, item.VisitID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return items, nil
	}

	meds, err := r.medicinesBy(ctx, `
		SELECT pr.visit_id, m.medicine_id, m.prescription_id, m.name, m.dosage, m.frequency, m.duration
		FROM medicines m
		JOIN prescriptions pr ON pr.prescription_id = m.prescription_id
		WHERE pr.visit_id = ANY($1)
		ORDER BY m.medicine_id`, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if m, ok := meds[item.VisitID]; ok {
			item.Medicines = m
		}
	}
	return items, nil
}

// medicinesBy groups the rows of query by its first column.
func (r *repoPG) medicinesBy(ctx context.Context, query string, ids []int64) (map[int64][]Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Medicine)
	for rows.Next() {
		var (
			key int64
			m   Medicine
		)
		if err := rows.Scan(&key, &m.MedicineID, &m.PrescriptionID, &m.Name, &m.Dosage, &m.Frequency, &m.Duration); err != nil {
			return nil, err
		}
		out[key] = append(out[key], m)
	}
	return out, rows.Err()
}

// -- Vitals --

func (r *repoPG) InsertVitals(ctx context.Context, v *Vitals) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vitals (visit_id, blood_pressure, pulse, temperature, spo2, weight, height, bmi)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING vitals_id`,
		v.VisitID, v.BloodPressure, v.Pulse, v.Temperature, v.SpO2, v.Weight, v.Height, v.BMI,
	).Scan(&v.VitalsID)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.Conflict("vitals already recorded for visit %d", v.VisitID)
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("visit %d not found", v.VisitID)
	}
	return err
}

func (r *repoPG) GetVitalsByVisit(ctx context.Context, visitID int64) (*Vitals, error) {
	var v Vitals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT vitals_id, visit_id, blood_pressure, pulse, temperature, spo2, weight, height, bmi
		FROM vitals WHERE visit_id = $1`, visitID,
	).Scan(&v.VitalsID, &v.VisitID, &v.BloodPressure, &v.Pulse, &v.Temperature, &v.SpO2, &v.Weight, &v.Height, &v.BMI)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("no vitals recorded for visit %d", visitID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// -- Prescriptions --

const prescriptionCols = `pr.prescription_id, pr.visit_id, pr.notes, pr.attachment_path, pr.is_signed, pr.is_dispensed,
	pr.created_at, pr.signed_at, pr.dispensed_at`

func prescriptionDest(p *Prescription) []interface{} {
	return []interface{}{
		&p.PrescriptionID, &p.VisitID, &p.Notes, &p.AttachmentPath, &p.IsSigned, &p.IsDispensed,
		&p.CreatedAt, &p.SignedAt, &p.DispensedAt,
	}
}

func scanPrescription(row rowScanner) (*Prescription, error) {
	var p Prescription
	if err := row.Scan(prescriptionDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) InsertPrescription(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (visit_id, notes, attachment_path, is_signed, is_dispensed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING prescription_id`,
		p.VisitID, p.Notes, p.AttachmentPath, p.IsSigned, p.IsDispensed, p.CreatedAt,
	).Scan(&p.PrescriptionID)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.Conflict("prescription already exists for visit %d", p.VisitID)
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("visit %d not found", p.VisitID)
	}
	return err
}

func (r *repoPG) GetPrescriptionForUpdate(ctx context.Context, id int64) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions pr WHERE pr.prescription_id = $1 FOR UPDATE`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("prescription %d not found", id)
	}
	return p, err
}

func (r *repoPG) GetPrescriptionByVisitForUpdate(ctx context.Context, visitID int64) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions pr WHERE pr.visit_id = $1 FOR UPDATE`, visitID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("no prescription for visit %d", visitID)
	}
	return p, err
}

func (r *repoPG) UpdatePrescriptionDraft(ctx context.Context, id int64, notes string, attachmentPath *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET notes = $2, attachment_path = COALESCE($3, attachment_path)
		WHERE prescription_id = $1 AND NOT is_signed`,
		id, notes, attachmentPath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("prescription %d is already signed", id)
	}
	return nil
}

func (r *repoPG) ReplaceMedicines(ctx context.Context, prescriptionID int64, meds []Medicine) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM medicines WHERE prescription_id = $1`, prescriptionID); err != nil {
		return err
	}
	if len(meds) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range meds {
		batch.Queue(`
			INSERT INTO medicines (prescription_id, name, dosage, frequency, duration)
			VALUES ($1, $2, $3, $4, $5)`,
			prescriptionID, m.Name, m.Dosage, m.Frequency, m.Duration)
	}
	return q.SendBatch(ctx, batch).Close()
}

func (r *repoPG) MarkSigned(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET is_signed = true, signed_at = $2 WHERE prescription_id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prescription %d not found", id)
	}
	return nil
}

func (r *repoPG) MarkDispensed(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET is_dispensed = true, dispensed_at = $2 WHERE prescription_id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prescription %d not found", id)
	}
	return nil
}

func (r *repoPG) SetPrescriptionAttachment(ctx context.Context, id int64, path string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE prescriptions SET attachment_path = $2 WHERE prescription_id = $1`, id, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prescription %d not found", id)
	}
	return nil
}

func (r *repoPG) ListPrescriptions(ctx context.Context, signedOnly bool) ([]*PrescriptionListItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+prescriptionCols+`,
			v.patient_id, p.patient_first_name, p.patient_last_name, p.gender, p.date_of_birth,
			p.address, p.phone_number, v.consultant_doctor_name
		FROM prescriptions pr
		JOIN visits v ON v.visit_id = pr.visit_id
		JOIN patients p ON p.patient_id = v.patient_id
		WHERE (NOT $1 OR pr.is_signed)
		ORDER BY pr.created_at DESC, pr.prescription_id DESC`, signedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		items []*PrescriptionListItem
		ids   []int64
	)
	for rows.Next() {
		item := &PrescriptionListItem{}
		pv := &item.Visit
		dest := append(prescriptionDest(&item.Prescription),
			&pv.PatientID, &pv.PatientFirstName, &pv.PatientLastName, &pv.Gender, &pv.DateOfBirth,
			&pv.PatientAddress, &pv.PatientPhone, &pv.ConsultantDoctorName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		item.Medicines = []Medicine{}
		items = append(items, item)
		ids = append(ids, item.PrescriptionID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return items, nil
	}

	meds, err := r.medicinesBy(ctx, `
		SELECT m.prescription_id, m.medicine_id, m.prescription_id, m.name, m.dosage, m.frequency, m.duration
		FROM medicines m
		WHERE m.prescription_id = ANY($1)
		ORDER BY m.medicine_id`, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if m, ok := meds[item.PrescriptionID]; ok {
			item.Medicines = m
		}
	}
	return items, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
