package visit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Visit statuses. A visit only ever moves forward through these.
const (
	StatusPending        = "Pending"
	StatusDoctorAssigned = "Doctor Assigned"
	StatusVitalsRecorded = "Vitals Recorded"
	StatusCompleted      = "Completed"
)

var statusRank = map[string]int{
	StatusPending:        0,
	StatusDoctorAssigned: 1,
	StatusVitalsRecorded: 2,
	StatusCompleted:      3,
}

// ValidStatus reports whether s is a known visit status.
func ValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

const (
	PriorityNormal    = "Normal"
	PriorityEmergency = "Emergency"
)

// normalizePriority maps blank to Normal and fixes the case of known values.
func normalizePriority(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", "normal":
		return PriorityNormal, true
	case "emergency":
		return PriorityEmergency, true
	}
	return "", false
}

// StringList is an ordered list of free-text entries (complaints, diagnoses,
// tests). It always encodes as a JSON array. On input it also accepts a
// string holding a serialized array, which older clients send; any other
// non-blank string becomes a single entry.
type StringList []string

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = StringList{}
		return nil
	case data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list entries must be strings: %w", err)
		}
		*l = compact(items)
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = ParseStringList(s)
		return nil
	}
	return fmt.Errorf("expected an array of strings or a string, got %s", data)
}

// ParseStringList decodes a serialized list, falling back to a single entry
// when s is not a JSON array of strings.
func ParseStringList(s string) StringList {
	s = strings.TrimSpace(s)
	if s == "" {
		return StringList{}
	}
	if strings.HasPrefix(s, "[") {
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return compact(items)
		}
	}
	return StringList{s}
}

// compact trims entries and drops blanks, keeping order.
func compact(items []string) StringList {
	out := make(StringList, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

type Visit struct {
	VisitID              int64      `json:"visitId"`
	PatientID            int64      `json:"patientId"`
	ConsultantDoctorName string     `json:"consultantDoctorName"`
	Priority             string     `json:"priority"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"createdAt"`
	AttachmentPath       *string    `json:"attachmentPath"`
	Complaints           StringList `json:"complaints"`
	Diagnosis            StringList `json:"diagnosis"`
	Tests                StringList `json:"tests"`
	Advice               string     `json:"advice"`
}

type Vitals struct {
	VitalsID      int64  `json:"vitalsId"`
	VisitID       int64  `json:"visitId"`
	BloodPressure string `json:"bloodPressure"`
	Pulse         string `json:"pulse"`
	Temperature   string `json:"temperature"`
	SpO2          string `json:"spO2"`
	Weight        string `json:"weight"`
	Height        string `json:"height"`
	BMI           string `json:"bmi"`
}

type Prescription struct {
	PrescriptionID int64      `json:"prescriptionId"`
	VisitID        int64      `json:"visitId"`
	Notes          string     `json:"notes"`
	AttachmentPath *string    `json:"attachmentPath"`
	IsSigned       bool       `json:"isSigned"`
	IsDispensed    bool       `json:"isDispensed"`
	CreatedAt      time.Time  `json:"createdAt"`
	SignedAt       *time.Time `json:"signedAt"`
	DispensedAt    *time.Time `json:"dispensedAt"`
	Medicines      []Medicine `json:"medicines"`
}

type Medicine struct {
	MedicineID     int64  `json:"medicineId,omitempty"`
	PrescriptionID int64  `json:"prescriptionId,omitempty"`
	Name           string `json:"name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
}

// ListItem is a visit with its patient name, vitals and prescribed
// medicines, as shown on the queue screens.
type ListItem struct {
	Visit
	PatientName string     `json:"patientName"`
	Vitals      *Vitals    `json:"vitals"`
	Medicines   []Medicine `json:"medicines"`
}

// ListFilter narrows ListVisits. Zero values do not filter.
type ListFilter struct {
	DoctorName string
	PatientID  int64
	// Day restricts results to visits created on this UTC calendar day.
	Day *time.Time
}

// PrescriptionListItem is a prescription with the patient details a
// pharmacist needs to dispense it.
type PrescriptionListItem struct {
	Prescription
	Visit PrescriptionVisit `json:"visit"`
}

type PrescriptionVisit struct {
	PatientID            int64     `json:"patientId"`
	PatientFirstName     string    `json:"patientFirstName"`
	PatientLastName      string    `json:"patientLastName"`
	Gender               string    `json:"gender"`
	PatientAge           int       `json:"patientAge"`
	PatientAddress       string    `json:"patientAddress"`
	PatientPhone         string    `json:"patientPhone"`
	ConsultantDoctorName string    `json:"consultantDoctorName"`
	DateOfBirth          time.Time `json:"-"`
}

type CreateVisitRequest struct {
	PatientID            int64  `json:"patientId"`
	ConsultantDoctorName string `json:"consultantDoctorName"`
	Priority             string `json:"priority"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AttachmentRequest struct {
	AttachmentPath string `json:"attachmentPath"`
}

type RecordVitalsRequest struct {
	VisitID       int64  `json:"visitId"`
	BloodPressure string `json:"bloodPressure"`
	Pulse         string `json:"pulse"`
	Temperature   string `json:"temperature"`
	SpO2          string `json:"spO2"`
	Weight        string `json:"weight"`
	Height        string `json:"height"`
	BMI           string `json:"bmi"`
}

// SavePrescriptionRequest is the doctor's consultation form. Notes double as
// the visit's advice.
type SavePrescriptionRequest struct {
	VisitID           int64      `json:"visitId"`
	Notes             string     `json:"notes"`
	ChiefComplaints   StringList `json:"chiefComplaints"`
	Diagnosis         StringList `json:"diagnosis"`
	LabInvestigations StringList `json:"labInvestigations"`
	AttachmentPath    *string    `json:"attachmentPath"`
	Medicines         []Medicine `json:"medicines"`
}

type SaveResult struct {
	ID      int64 `json:"id"`
	Created bool  `json:"created"`
}
