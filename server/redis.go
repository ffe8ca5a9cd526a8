package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/swdee/go-speedcam"
)

// RedisPublisher publishes speed events and counts as JSON messages on a
// Redis pub/sub channel
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	log     logrus.FieldLogger
}

// NewRedisPublisher returns a publisher sending to channel
func NewRedisPublisher(client redis.UniversalClient, channel string, log logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// DialRedis connects to the Redis server at addr and checks it responds
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return client, nil
}

// Channel returns the pub/sub channel name
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// encodeResult builds the messages published for a frame result
func encodeResult(res speedcam.FrameResult) ([][]byte, error) {

	msgs := make([][]byte, 0, len(res.Events)+1)

	for i := range res.Events {
		b, err := json.Marshal(Message{Type: "event", Frame: res.Frame.Seq, Event: &res.Events[i]})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, b)
	}

	if len(res.Events) > 0 {
		counts := res.Counts
		b, err := json.Marshal(Message{Type: "counts", Frame: res.Frame.Seq, Counts: &counts})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, b)
	}

	return msgs, nil
}

// PublishResult publishes every event of the frame followed by the updated
// counts.  Frames without events publish nothing.
func (p *RedisPublisher) PublishResult(ctx context.Context, res speedcam.FrameResult) error {

	msgs, err := encodeResult(res)

	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", res.Frame.Seq, err)
	}

	if len(msgs) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()

	for _, msg := range msgs {
		pipe.Publish(ctx, p.channel, msg)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).WithField("channel", p.channel).Error("Failed to publish to redis")
		return fmt.Errorf("failed to publish frame %d: %w", res.Frame.Seq, err)
	}

	return nil
}
