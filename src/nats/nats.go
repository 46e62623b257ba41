package nats

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/sirupsen/logrus"
)

type NatsInstance struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

func New(ctx global.Context) global.Nats {
	conn, err := nats.Connect(
		ctx.Config().Nats.URL,
		nats.Name("pipeline-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.Warn("nats disconnected: ", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logrus.Info("nats reconnected")
		}),
	)
	if err != nil {
		logrus.Fatal("failed to connect to nats: ", err)
	}

	return &NatsInstance{
		conn: conn,
	}
}

// Subscribe joins queue so replicas share the subject's events. The channel is
// never closed, stop reading from it once the context is done.
func (n *NatsInstance) Subscribe(subject, queue string) (<-chan *nats.Msg, error) {
	ch := make(chan *nats.Msg, 64)

	sub, err := n.conn.ChanQueueSubscribe(subject, queue, ch)
	if err != nil {
		return nil, err
	}

	n.subs = append(n.subs, sub)

	return ch, nil
}

func (n *NatsInstance) Publish(subject string, msg []byte) error {
	return n.conn.Publish(subject, msg)
}

func (n *NatsInstance) Shutdown() {
	for _, sub := range n.subs {
		_ = sub.Unsubscribe()
	}
	n.conn.Close()
}
