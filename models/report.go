package models

// RunStatus describes how a walk ended.
type RunStatus string

const (
	// StatusCompleted means the results panel became visible.
	StatusCompleted RunStatus = "completed"
	// StatusNoOptions means a question rendered without any options.
	StatusNoOptions RunStatus = "no_options"
	// StatusFailed means the walk stopped on an error.
	StatusFailed RunStatus = "failed"
)

// Advance methods recorded per question.
const (
	AdvanceNext   = "next"
	AdvanceSubmit = "submit"
	AdvanceNone   = "none"
)

// QuestionObservation is what the walker read from the page on one iteration.
type QuestionObservation struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// QuestionRecord is one loop iteration of a walk.
type QuestionRecord struct {
	Iteration     int                 `json:"iteration"`
	Observation   QuestionObservation `json:"observation"`
	SelectedIndex int                 `json:"selected_index"`
	Advance       string              `json:"advance,omitempty"`
}

// RunReport summarises one walk of a quiz page.
type RunReport struct {
	QuizURL   string           `json:"quiz_url"`
	PageTitle string           `json:"page_title,omitempty"`
	FinalURL  string           `json:"final_url,omitempty"`
	Status    RunStatus        `json:"status"`
	Questions []QuestionRecord `json:"questions"`

	// Screenshots lists written files in write order.
	Screenshots []string `json:"screenshots"`

	// DetailedResults is the JSON literal logged by the page after the
	// DETAILED_RESULTS marker, carried verbatim and never interpreted.
	DetailedResults string `json:"detailed_results,omitempty"`

	// Summary is the results panel rendered as Markdown.
	Summary string `json:"summary,omitempty"`

	StartedAt  int64        `json:"started_at"`
	FinishedAt int64        `json:"finished_at"`
	DurationMs int64        `json:"duration_ms"`
	Error      *ErrorDetail `json:"error,omitempty"`
}
