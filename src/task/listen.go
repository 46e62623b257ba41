package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const (
	TransportRmq    = "rmq"
	TransportNats   = "nats"
	TransportLambda = "lambda"
	TransportLocal  = "simulate"
)

type delivery interface {
	Body() []byte
	Transport() string
	Finish(ctx global.Context, res Result, err error)
	// Release hands back a delivery that was received but never processed.
	Release()
}

// Listen feeds every configured transport into one bounded worker pool. It
// returns once the context is done or every transport has closed, and no task
// is added after it returns, so callers may Wait on the context afterwards.
func Listen(ctx global.Context) {
	jobs := make(chan delivery)

	wg := sync.WaitGroup{}
	feed := func(d delivery) bool {
		if ctx.Err() != nil {
			d.Release()
			return false
		}

		select {
		case jobs <- d:
			return true
		case <-ctx.Done():
			d.Release()
			return false
		}
	}

	if ctx.Instances().Rmq != nil {
		msgCh, err := ctx.Instances().Rmq.Subscribe(ctx.Config().Rmq.EventQueueName)
		if err != nil {
			logrus.Fatal("failed to listen to events: ", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-msgCh:
					if !ok || !feed(&rmqDelivery{msg: msg}) {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	if ctx.Instances().Nats != nil {
		msgCh, err := ctx.Instances().Nats.Subscribe(ctx.Config().Nats.Subject, ctx.Config().Nats.QueueGroup)
		if err != nil {
			logrus.Fatal("failed to listen to events: ", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-msgCh:
					if !ok || !feed(&natsDelivery{msg: msg}) {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(jobs)
	}()

	maxProcs := ctx.Config().Workers
	workers := make(chan *taskWorker, maxProcs)
	for i := 0; i < maxProcs; i++ {
		workers <- &taskWorker{
			cb: workers,
		}
	}

	for job := range jobs {
		worker := <-workers
		ctx.AddTask(1)
		go worker.process(ctx, job)
	}
}

type taskWorker struct {
	cb chan *taskWorker
}

func (w *taskWorker) process(ctx global.Context, d delivery) {
	defer func() {
		ctx.DoneTask()
		w.cb <- w
	}()

	// in-flight work survives shutdown, only the task deadline applies
	lCtx, cancel := context.WithTimeout(context.Background(), time.Second*time.Duration(ctx.Config().MaxTaskDuration))
	defer cancel()

	task := New(d.Transport(), ctx.Instances().Filter, ctx.Instances().Notifier)

	res, err := task.Process(lCtx, d.Body())

	d.Finish(ctx, res, err)
}

type rmqDelivery struct {
	msg amqp.Delivery
}

func (d *rmqDelivery) Release() {
	if err := d.msg.Nack(false, true); err != nil {
		logrus.Warn("failed to nack: ", err)
	}
}

func (d *rmqDelivery) Body() []byte {
	return d.msg.Body
}

func (d *rmqDelivery) Transport() string {
	return TransportRmq
}

func (d *rmqDelivery) Finish(ctx global.Context, res Result, err error) {
	switch {
	case err == nil:
		if err := d.msg.Ack(false); err != nil {
			logrus.Warn("failed to ack: ", err)
		}
	case errors.Is(err, event.ErrMalformed):
		if err := d.msg.Reject(false); err != nil {
			logrus.Warn("failed to reject: ", err)
		}
	default:
		if err := d.msg.Reject(ctx.Config().Rmq.RequeueOnFailure && !d.msg.Redelivered); err != nil {
			logrus.Warn("failed to reject: ", err)
		}
	}

	if queue := ctx.Config().Rmq.ResultQueueName; queue != "" {
		if err := ctx.Instances().Rmq.Publish(queue, res.Marshal()); err != nil {
			logrus.Error("failed to publish result: ", err)
		}
	}
}

type natsDelivery struct {
	msg *nats.Msg
}

func (d *natsDelivery) Body() []byte {
	return d.msg.Data
}

func (d *natsDelivery) Transport() string {
	return TransportNats
}

// core nats has no redelivery, a released message is dropped
func (d *natsDelivery) Release() {}

func (d *natsDelivery) Finish(ctx global.Context, res Result, _ error) {
	if d.msg.Reply != "" {
		if err := ctx.Instances().Nats.Publish(d.msg.Reply, res.Marshal()); err != nil {
			logrus.Warn("failed to respond: ", err)
		}
	}

	if subject := ctx.Config().Nats.ResultSubject; subject != "" {
		if err := ctx.Instances().Nats.Publish(subject, res.Marshal()); err != nil {
			logrus.Error("failed to publish result: ", err)
		}
	}
}
