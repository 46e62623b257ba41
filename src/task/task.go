package task

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/seventv/PipelineNotifier/src/format"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/seventv/PipelineNotifier/src/metrics"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrPanic = fmt.Errorf("panic while processing event")

// Task carries one inbound event through filter, format and dispatch. Tasks
// share nothing but the read-only filter and notifier.
type Task struct {
	id        uuid.UUID
	transport string

	filter   global.Filter
	notifier global.Notifier
}

func New(transport string, filter global.Filter, notifier global.Notifier) *Task {
	id, _ := uuid.NewRandom()
	return &Task{
		id:        id,
		transport: transport,
		filter:    filter,
		notifier:  notifier,
	}
}

func (t *Task) ID() uuid.UUID {
	return t.id
}

// Process decodes a raw trigger and handles it. The returned error is non-nil
// for malformed input and failed deliveries; filtered events are not errors.
func (t *Task) Process(ctx context.Context, data []byte) (Result, error) {
	evt, err := event.Parse(data)
	if err != nil {
		logrus.WithField("task", t.id.String()).Debug("malformed payload: ", spew.Sdump(string(data)))
		return t.malformed(err)
	}

	return t.Handle(ctx, evt)
}

func (t *Task) ProcessTrigger(ctx context.Context, trigger event.Trigger) (Result, error) {
	evt, err := trigger.Event()
	if err != nil {
		return t.malformed(err)
	}

	return t.Handle(ctx, evt)
}

func (t *Task) malformed(err error) (Result, error) {
	metrics.EventsTotal.WithLabelValues(t.transport, string(Malformed)).Inc()
	logrus.WithField("task", t.id.String()).WithError(err).Error("rejected inbound event")

	return Result{
		TaskID:  t.id.String(),
		Outcome: Malformed,
		Error:   err.Error(),
	}, err
}

func (t *Task) Handle(ctx context.Context, evt event.StageExecutionEvent) (res Result, err error) {
	res = Result{
		TaskID:   t.id.String(),
		EventID:  evt.ID,
		Pipeline: evt.Pipeline,
		Stage:    evt.Stage,
		State:    string(evt.State),
	}

	log := logrus.WithFields(logrus.Fields{
		"task":     t.id.String(),
		"pipeline": evt.Pipeline,
		"stage":    evt.Stage,
		"state":    evt.State,
	})

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			res.Outcome = Failed
			res.Error = err.Error()
			log.Error(err)
		}
		metrics.EventsTotal.WithLabelValues(t.transport, string(res.Outcome)).Inc()
	}()

	if !t.filter.Accept(evt) {
		log.WithField("source", evt.Source).Debug("event filtered")
		res.Outcome = Filtered
		return res, nil
	}

	msg := format.Format(evt)
	res.Message = msg.Text

	start := time.Now()
	delivery := t.notifier.Dispatch(ctx, msg)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	res.StatusCode = delivery.StatusCode
	res.ResponseBody = delivery.ResponseBody

	if !delivery.Succeeded {
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		res.Outcome = Failed
		if delivery.Err != nil {
			res.Error = delivery.Err.Error()
		}
		log.WithError(delivery.Err).Warn("notification delivery failed")
		return res, delivery.Err
	}

	metrics.DeliveriesTotal.WithLabelValues("succeeded").Inc()
	res.Outcome = Dispatched
	log.WithField("status", delivery.StatusCode).Info("notification dispatched")

	return res, nil
}

func (r Result) Marshal() []byte {
	b, _ := json.Marshal(r)
	return b
}
