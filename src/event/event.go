package event

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultSource     = "aws.codepipeline"
	DefaultDetailType = "CodePipeline Stage Execution State Change"
)

// State is left open on purpose, upstream systems add states without notice.
type State string

const (
	Started   State = "STARTED"
	Succeeded State = "SUCCEEDED"
	Failed    State = "FAILED"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// StageExecutionEvent is one observed transition of one stage of one pipeline run.
type StageExecutionEvent struct {
	ID          string `json:"id,omitempty"`
	Pipeline    string `json:"pipeline"`
	ExecutionID string `json:"execution_id,omitempty"`
	Stage       string `json:"stage"`
	State       State  `json:"state"`
	OccurredAt  string `json:"occurred_at"`
	Source      string `json:"source"`
	DetailType  string `json:"detail_type,omitempty"`
	Account     string `json:"account,omitempty"`
	Region      string `json:"region,omitempty"`
}

type Trigger struct {
	ID         string         `json:"id"`
	Version    string         `json:"version"`
	DetailType *string        `json:"detail-type"`
	Source     *string        `json:"source"`
	Account    string         `json:"account"`
	Time       *string        `json:"time"`
	Region     string         `json:"region"`
	Resources  []string       `json:"resources"`
	Detail     *TriggerDetail `json:"detail"`
}

type TriggerDetail struct {
	Pipeline    *string `json:"pipeline"`
	ExecutionID string  `json:"execution-id"`
	Stage       *string `json:"stage"`
	State       *string `json:"state"`
}

// MalformedError is returned when an inbound trigger breaks the upstream contract.
type MalformedError struct {
	Missing []string
	Err     error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed inbound event: %s", e.Err.Error())
	}
	return fmt.Sprintf("malformed inbound event: missing %s", strings.Join(e.Missing, ", "))
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

var ErrMalformed = fmt.Errorf("malformed inbound event")

// Parse decodes a raw trigger payload. Unknown fields are ignored.
func Parse(data []byte) (StageExecutionEvent, error) {
	t := Trigger{}
	if err := json.Unmarshal(data, &t); err != nil {
		return StageExecutionEvent{}, &MalformedError{Err: err}
	}

	return t.Event()
}

// Event maps the trigger onto a StageExecutionEvent. None of the required
// fields are synthesized.
func (t Trigger) Event() (StageExecutionEvent, error) {
	missing := []string{}
	if t.Detail == nil {
		missing = append(missing, "detail")
	} else {
		if t.Detail.Pipeline == nil {
			missing = append(missing, "detail.pipeline")
		}
		if t.Detail.Stage == nil {
			missing = append(missing, "detail.stage")
		}
		if t.Detail.State == nil {
			missing = append(missing, "detail.state")
		}
	}
	if t.Time == nil {
		missing = append(missing, "time")
	}
	if len(missing) != 0 {
		return StageExecutionEvent{}, &MalformedError{Missing: missing}
	}

	evt := StageExecutionEvent{
		ID:          t.ID,
		Pipeline:    *t.Detail.Pipeline,
		ExecutionID: t.Detail.ExecutionID,
		Stage:       *t.Detail.Stage,
		State:       State(*t.Detail.State),
		OccurredAt:  *t.Time,
		Source:      DefaultSource,
		DetailType:  DefaultDetailType,
		Account:     t.Account,
		Region:      t.Region,
	}
	if t.Source != nil {
		evt.Source = *t.Source
	}
	if t.DetailType != nil {
		evt.DetailType = *t.DetailType
	}

	return evt, nil
}

// Trigger renders the event back into the shape the pipeline engine emits.
func (e StageExecutionEvent) Trigger() Trigger {
	pipeline, stage, state, occurredAt := e.Pipeline, e.Stage, string(e.State), e.OccurredAt
	source, detailType := e.Source, e.DetailType

	t := Trigger{
		ID:        e.ID,
		Version:   "0",
		Source:    &source,
		Account:   e.Account,
		Time:      &occurredAt,
		Region:    e.Region,
		Resources: []string{},
		Detail: &TriggerDetail{
			Pipeline:    &pipeline,
			ExecutionID: e.ExecutionID,
			Stage:       &stage,
			State:       &state,
		},
	}
	if detailType != "" {
		t.DetailType = &detailType
	}

	return t
}

func (e StageExecutionEvent) Marshal() ([]byte, error) {
	return json.Marshal(e.Trigger())
}
