package rmq

import (
	"time"

	"github.com/google/uuid"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

type RmqInstance struct {
	rmq      *amqp.Connection
	chRmq    *amqp.Channel
	consumer string
}

func New(ctx global.Context) global.Rmq {
	rmq, err := amqp.Dial(ctx.Config().Rmq.ServerURL)
	if err != nil {
		logrus.Fatal("failed to connect to rmq: ", err)
	}

	chRmq, err := rmq.Channel()
	if err != nil {
		logrus.Fatal("failed to connect to rmq: ", err)
	}

	// one unacked event per worker, the rest stay on the broker
	if err = chRmq.Qos(ctx.Config().Workers, 0, false); err != nil {
		logrus.Fatal("failed to set rmq qos: ", err)
	}

	for _, queue := range []string{ctx.Config().Rmq.EventQueueName, ctx.Config().Rmq.ResultQueueName} {
		if queue == "" {
			continue
		}

		_, err = chRmq.QueueDeclare(
			queue, // queue name
			true,  // durable
			false, // auto delete
			false, // exclusive
			false, // no wait
			nil,   // arguments
		)
		if err != nil {
			logrus.Fatal("failed to connect to rmq: ", err)
		}
	}

	return &RmqInstance{
		rmq:   rmq,
		chRmq: chRmq,
	}
}

// Subscribe consumes queue with manual acks under a consumer tag unique to this
// process, so Shutdown can cancel it.
func (r *RmqInstance) Subscribe(queue string) (<-chan amqp.Delivery, error) {
	r.consumer = "pipeline-notifier-" + uuid.NewString()

	return r.chRmq.Consume(queue, r.consumer, false, false, false, false, nil)
}

// Publish sends a persistent JSON message to queue through the default exchange.
func (r *RmqInstance) Publish(queue string, msg []byte) error {
	return r.chRmq.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		AppId:        "pipeline-notifier",
		Timestamp:    time.Now(),
		Body:         msg,
	})
}

// Shutdown stops consuming first, unacked deliveries go back to the queue when
// the channel closes.
func (r *RmqInstance) Shutdown() {
	if r.consumer != "" {
		if err := r.chRmq.Cancel(r.consumer, false); err != nil {
			logrus.Warn("failed to cancel rmq consumer: ", err)
		}
	}
	if err := r.chRmq.Close(); err != nil {
		logrus.Warn("failed to close rmq channel: ", err)
	}
	if err := r.rmq.Close(); err != nil {
		logrus.Warn("failed to close rmq connection: ", err)
	}
}
