package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp, keeping only
// the calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

// Age returns completed years between dob and on.
func Age(dob, on time.Time) int {
	if dob.IsZero() {
		return 0
	}
	years := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type Patient struct {
	PatientID        int64  `json:"patientId"`
	PatientFirstName string `json:"patientFirstName"`
	PatientLastName  string `json:"patientLastName"`
	DateOfBirth      Date   `json:"dateOfBirth"`
	Gender           string `json:"gender"`
	PhoneNumber      string `json:"phoneNumber"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Prescription     string `json:"prescription"`
	BloodGroup       string `json:"bloodGroup"`
	IsVyasa          bool   `json:"isVyasa"`
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.PatientFirstName + " " + p.PatientLastName)
}

// CreateRequest is the registration payload. The date of birth stays a
// string until the service parses it.
type CreateRequest struct {
	PatientFirstName string `json:"patientFirstName"`
	PatientLastName  string `json:"patientLastName"`
	DateOfBirth      string `json:"dateOfBirth"`
	Gender           string `json:"gender"`
	PhoneNumber      string `json:"phoneNumber"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Prescription     string `json:"prescription"`
	BloodGroup       string `json:"bloodGroup"`
	IsVyasa          bool   `json:"isVyasa"`
}
