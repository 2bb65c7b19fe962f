package models

// Task statuses reported by the server's background job map.
const (
	TaskQueued     = "queued"
	TaskProcessing = "processing"
	TaskSuccess    = "success"
	TaskError      = "error"
)

// Task is the client's read-only view of a server-tracked background job.
type Task struct {
	ID       string         `json:"id,omitempty"`
	Status   string         `json:"status"`
	Progress string         `json:"progress"`
	Message  string         `json:"message"`
	Result   map[string]any `json:"result,omitempty"`
}

// IsTerminal reports whether the task reached success or error.
func (t Task) IsTerminal() bool {
	return t.Status == TaskSuccess || t.Status == TaskError
}

// PostID extracts result.post_id when the server attached one.
func (t Task) PostID() string {
	if t.Result == nil {
		return ""
	}
	if v, ok := t.Result["post_id"].(string); ok {
		return v
	}
	return ""
}

// EnqueueResponse is returned by upload and publish endpoints.
type EnqueueResponse struct {
	Status  string `json:"status"`
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}
