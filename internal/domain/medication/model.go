package medication

// Drug is an entry in the prescribing catalog. The defaults prefill the
// medicine row when a doctor picks the drug.
type Drug struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	DefaultDosage    string `json:"defaultDosage"`
	DefaultFrequency string `json:"defaultFrequency"`
	DefaultDuration  string `json:"defaultDuration"`
}
