package model

const (
	ResponseSuccess = "success"
	ResponseError   = "error"
)

// APIResponse is the body of the ingest endpoint responses and of every API error.
type APIResponse struct {
	Status   string `json:"status"`
	Hostname string `json:"hostname,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StatusRequest is an operator request to change an asset status.
//
// A maintenance log entry is recorded when Description is set, which requires a Technician.
type StatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Technician  string `json:"technician,omitempty"`
}

// StatusAck acknowledges a status update.
type StatusAck struct {
	Hostname string               `json:"hostname"`
	Status   AssetStatus          `json:"status"`
	Entry    *MaintenanceLogEntry `json:"entry,omitempty"`
}

// SupportStatus is the entitlement of a device serial number.
type SupportStatus struct {
	Serial    string `json:"serial"`
	Supported bool   `json:"supported"`
	Message   string `json:"message"`
}
