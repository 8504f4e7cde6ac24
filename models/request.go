package models

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// QuizURL is the quiz page to walk. Required.
	QuizURL string `json:"quiz_url" binding:"required,url"`

	// MaxIterations bounds the traversal loop for this run.
	// Default: the server's configured bound. 0 keeps the default.
	MaxIterations int `json:"max_iterations,omitempty" binding:"omitempty,min=1,max=1000"`

	// Timeout is the maximum duration in seconds for the whole run.
	// Default: 120. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// WebhookURL receives a run.completed or run.failed event when the run ends.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// Wait holds the response until the run finishes.
	Wait bool `json:"wait,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *RunRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 120
	}
}
