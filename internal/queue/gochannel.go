package queue

import (
	"context"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

// GoChannel keeps jobs in process. Nothing survives a restart.
//
// The topic is subscribed once at construction so jobs published before the
// first Consume are not lost. Every Consume call reads the same subscription.
type GoChannel struct {
	pubSub   *gochannel.GoChannel
	topic    string
	messages <-chan *message.Message
	log      logrus.FieldLogger
	closed   atomic.Bool
}

func NewGoChannel(buffer int64, log logrus.FieldLogger) (*GoChannel, error) {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = logrus.New()
	}
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, watermill.NewStdLogger(false, false))

	messages, err := ps.Subscribe(context.Background(), DefaultTopic)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &GoChannel{pubSub: ps, topic: DefaultTopic, messages: messages, log: log}, nil
}

func (q *GoChannel) Publish(ctx context.Context, job Job) error {
	if q.closed.Load() {
		return ErrClosed
	}
	payload, err := encode(job)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return q.pubSub.Publish(q.topic, msg)
}

func (q *GoChannel) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			q.deliver(ctx, msg, h)
		}
	}
}

func (q *GoChannel) deliver(ctx context.Context, msg *message.Message, h Handler) {
	// the subscription hands out the next message only after an ack, and an
	// in-process job has no redelivery anyway
	msg.Ack()

	job, err := decode(msg.Payload)
	if err != nil {
		q.log.WithError(err).WithField("message_id", msg.UUID).Error("dropping malformed job")
		return
	}
	if err := h(ctx, job); err != nil {
		q.log.WithError(err).WithField("evaluation_id", job.EvaluationID).Warn("job handler failed")
	}
}

func (q *GoChannel) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.pubSub.Close()
}
