package task

type Outcome string

const (
	Dispatched Outcome = "dispatched"
	Filtered   Outcome = "filtered"
	Malformed  Outcome = "malformed"
	Failed     Outcome = "failed"
)

// Result is published once per processed event.
type Result struct {
	TaskID       string  `json:"task_id"`
	EventID      string  `json:"event_id,omitempty"`
	Pipeline     string  `json:"pipeline,omitempty"`
	Stage        string  `json:"stage,omitempty"`
	State        string  `json:"state,omitempty"`
	Outcome      Outcome `json:"outcome"`
	Message      string  `json:"message,omitempty"`
	StatusCode   int     `json:"status_code,omitempty"`
	ResponseBody string  `json:"response_body,omitempty"`
	Error        string  `json:"error,omitempty"`
}
