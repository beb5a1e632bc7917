// Package relay publishes composite frames to Redis so other processes can
// watch the canvas without connecting to it.
package relay

import (
	"context"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"collabcanvas/internal/canvas"
)

// DefaultChannel is the Redis channel frames are published on.
const DefaultChannel = "collabcanvas:frames"

// Publisher sends a message to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	rdb *redis.Client
}

func (p redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// Dial connects to Redis at addr and checks it is reachable.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s failed", addr)
	}
	return rdb, nil
}

// NewRedisPublisher adapts a Redis client.
func NewRedisPublisher(rdb *redis.Client) Publisher {
	return redisPublisher{rdb: rdb}
}

// Relay publishes snapshots offered by the hub, skipping repeats.
type Relay struct {
	pub      Publisher
	channel  string
	instance uuid.UUID
	frames   chan canvas.Snapshot
	encoder  *zstd.Encoder
	logger   logrus.FieldLogger

	seq  uint64
	last [32]byte
}

// New creates a Relay publishing on channel.
func New(pub Publisher, channel string, logger logrus.FieldLogger) (*Relay, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrap(err, "create zstd encoder failed")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		pub:      pub,
		channel:  channel,
		instance: uuid.New(),
		frames:   make(chan canvas.Snapshot, 1),
		encoder:  encoder,
		logger:   logger,
	}, nil
}

// Instance identifies this server in published frames.
func (r *Relay) Instance() uuid.UUID {
	return r.instance
}

// Offer hands over a snapshot. If the previous one has not been published
// yet the new one is dropped.
func (r *Relay) Offer(s canvas.Snapshot) {
	select {
	case r.frames <- s:
	default:
	}
}

// Run publishes offered snapshots until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	defer r.encoder.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-r.frames:
			if _, err := r.publish(ctx, s); err != nil {
				r.logger.WithError(err).Warn("publish frame failed")
			}
		}
	}
}

// publish sends s unless it is identical to the last published frame.
func (r *Relay) publish(ctx context.Context, s canvas.Snapshot) (bool, error) {
	sum := blake3.Sum256(s.Pix)
	if r.seq > 0 && sum == r.last {
		return false, nil
	}
	data, err := MarshalFrame(Frame{
		Instance: r.instance.String(),
		Seq:      r.seq + 1,
		Dim:      s.Dim,
		Sum:      sum[:],
		ZPix:     r.encoder.EncodeAll(s.Pix, nil),
	})
	if err != nil {
		return false, errors.Wrap(err, "marshal frame failed")
	}
	if err := r.pub.Publish(ctx, r.channel, data); err != nil {
		return false, errors.Wrap(err, "publish failed")
	}
	r.seq++
	r.last = sum
	return true, nil
}
