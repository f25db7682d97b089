package model

// Authentication methods recorded on a CallerIdentity.
const (
	AuthMethodToken  = "token"
	AuthMethodAPIKey = "api_key"

	// MachineSubject is the implicit subject of callers admitted by the access gate.
	MachineSubject = "machine"
)

// CallerIdentity is the authenticated caller of a request. It is not persisted.
type CallerIdentity struct {
	Subject string `json:"subject"`
	Method  string `json:"method"`
}
