package filter

import (
	"github.com/seventv/PipelineNotifier/src/event"
)

var (
	DefaultSources = []string{
		"aws.codebuild",
		"aws.codecommit",
		"aws.codedeploy",
		"aws.codepipeline",
	}
	DefaultDetailTypes = []string{event.DefaultDetailType}
	DefaultStates      = []string{
		string(event.Started),
		string(event.Succeeded),
		string(event.Failed),
	}
)

// Filter decides which stage events are worth reporting. It is read-only after
// New and safe for concurrent use.
type Filter struct {
	sources     map[string]struct{}
	detailTypes map[string]struct{}
	states      map[event.State]struct{}
}

func New(sources, detailTypes, states []string) *Filter {
	f := &Filter{
		sources:     make(map[string]struct{}, len(sources)),
		detailTypes: make(map[string]struct{}, len(detailTypes)),
		states:      make(map[event.State]struct{}, len(states)),
	}

	for _, v := range sources {
		f.sources[v] = struct{}{}
	}
	for _, v := range detailTypes {
		f.detailTypes[v] = struct{}{}
	}
	for _, v := range states {
		f.states[event.State(v)] = struct{}{}
	}

	return f
}

func Default() *Filter {
	return New(DefaultSources, DefaultDetailTypes, DefaultStates)
}

// Accept never fails. A rejection is not an error, the event is simply not
// reported. The detail type is only checked when both the event and the filter
// carry one.
func (f *Filter) Accept(evt event.StageExecutionEvent) bool {
	if _, ok := f.sources[evt.Source]; !ok {
		return false
	}

	if _, ok := f.states[evt.State]; !ok {
		return false
	}

	if evt.DetailType != "" && len(f.detailTypes) != 0 {
		if _, ok := f.detailTypes[evt.DetailType]; !ok {
			return false
		}
	}

	return true
}
