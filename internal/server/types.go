package server

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	CommandID string         `json:"command_id"`
	Params    map[string]any `json:"params,omitempty"`
}

// StartRunResponse acknowledges a started run.
type StartRunResponse struct {
	RunID int64 `json:"run_id"`
}

// TemplateResponse carries one mail template's text.
type TemplateResponse struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
