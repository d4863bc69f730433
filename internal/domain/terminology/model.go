package terminology

// Code is a diagnosis in the local ICD-11 catalog. Codes prefixed with
// CustomCodePrefix were coined locally for diagnoses the doctor typed in.
type Code struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

const CustomCodePrefix = "CUS-"

type CodeInput struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type SaveResult struct {
	Code
	Message string `json:"message"`
	Created bool   `json:"created"`
}

type ImportResult struct {
	Message        string `json:"message"`
	ImportedCount  int    `json:"importedCount"`
	DuplicateCount int    `json:"duplicateCount"`
}

// ExternalEntity is one match from the WHO ICD-11 search.
type ExternalEntity struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	URI   string `json:"uri,omitempty"`
}
