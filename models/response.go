package models

// Run job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// RunJob is a walk submitted through the API.
type RunJob struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	QuizURL   string       `json:"quiz_url"`
	Report    *RunReport   `json:"report,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	CreatedAt int64        `json:"created_at"`
	UpdatedAt int64        `json:"updated_at"`
}

// RunResponse is the response for POST /api/v1/runs.
type RunResponse struct {
	Success bool         `json:"success"`
	ID      string       `json:"id,omitempty"`
	Status  string       `json:"status,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	Success bool         `json:"success"`
	Job     *RunJob      `json:"job,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// RunnerStats reports the run slots in use.
type RunnerStats struct {
	MaxConcurrent int `json:"max_concurrent"`
	ActiveRuns    int `json:"active_runs"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Uptime  string      `json:"uptime"`
	Runner  RunnerStats `json:"runner"`
	Version string      `json:"version"`
}
