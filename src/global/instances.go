package global

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/seventv/PipelineNotifier/src/format"
	"github.com/seventv/PipelineNotifier/src/notify"
	"github.com/streadway/amqp"
)

type Instances struct {
	AwsSsm   AwsSsm
	Rmq      Rmq
	Nats     Nats
	Filter   Filter
	Notifier Notifier
}

type AwsSsm interface {
	GetParameter(ctx context.Context, name string, decrypt bool) (string, error)
}

type Rmq interface {
	Subscribe(name string) (<-chan amqp.Delivery, error)
	Publish(queue string, msg []byte) error
	Shutdown()
}

type Nats interface {
	Subscribe(subject, queue string) (<-chan *nats.Msg, error)
	Publish(subject string, msg []byte) error
	Shutdown()
}

type Filter interface {
	Accept(evt event.StageExecutionEvent) bool
}

type Notifier interface {
	Dispatch(ctx context.Context, msg format.Message) notify.DeliveryResult
}
