// Package worker runs the background JetStream consumers of the discussion service.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/analytics"
	"github.com/example/experience-platform/services/discussion/internal/store"
)

const (
	analyticsStream    = "ANALYTICS"
	popularityConsumer = "discussion_popularity"

	// ActionReply is the popularity action recorded for a new reply.
	ActionReply = "reply"
)

// errMalformed marks events that can never be processed; they are terminated, not retried.
var errMalformed = errors.New("malformed event")

// PopularityConsumer turns experience_replied events into popularity logs.
type PopularityConsumer struct {
	sub       *nats.Subscription
	logs      store.PopularityLogStore
	batchSize int
	wait      time.Duration
	log       *zap.Logger
}

// NewPopularityConsumer ensures the ANALYTICS stream and binds a durable pull
// consumer on the experience_replied subject.
func NewPopularityConsumer(js nats.JetStreamContext, logs store.PopularityLogStore, batchSize, batchIntervalMs int, log *zap.Logger) (*PopularityConsumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ensureStream(js, log)

	sub, err := js.PullSubscribe(analytics.SubjectExperienceReplied, popularityConsumer, nats.BindStream(analyticsStream))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", analytics.SubjectExperienceReplied, err)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if batchIntervalMs <= 0 {
		batchIntervalMs = 2000
	}
	return &PopularityConsumer{
		sub:       sub,
		logs:      logs,
		batchSize: batchSize,
		wait:      time.Duration(batchIntervalMs) * time.Millisecond,
		log:       log,
	}, nil
}

// Run processes messages until ctx is cancelled.
func (c *PopularityConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Error("popularity consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			err := handleEvent(ctx, c.logs, m.Data)
			switch {
			case err == nil:
				if err := m.Ack(); err != nil {
					c.log.Warn("popularity consumer: ack", zap.Error(err))
				}
			case errors.Is(err, errMalformed):
				c.log.Warn("popularity consumer: dropping event", zap.Error(err))
				_ = m.Term()
			default:
				c.log.Error("popularity consumer: insert log", zap.Error(err))
				if err := m.Nak(); err != nil {
					c.log.Warn("popularity consumer: nak", zap.Error(err))
				}
			}
		}
	}
}

func handleEvent(ctx context.Context, logs store.PopularityLogStore, data []byte) error {
	var ev analytics.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	experienceID, _ := ev.Properties["experience_id"].(string)
	if experienceID == "" || ev.UserID == "" {
		return fmt.Errorf("%w: event %s lacks experience_id or user_id", errMalformed, ev.EventID)
	}
	return logs.InsertPopularityLog(ctx, store.PopularityLog{
		ExperienceID: experienceID,
		UserID:       ev.UserID,
		ActionType:   ActionReply,
		CreatedAt:    ev.OccurredAt,
	})
}

// ensureStream creates the ANALYTICS JetStream stream if it doesn't exist.
func ensureStream(js nats.JetStreamContext, log *zap.Logger) {
	cfg := &nats.StreamConfig{
		Name:      analyticsStream,
		Subjects:  []string{"analytics.>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	}

	_, err := js.AddStream(cfg)
	if err == nil {
		log.Info("analytics stream created", zap.String("stream", analyticsStream))
		return
	}
	if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		if _, updateErr := js.UpdateStream(cfg); updateErr != nil {
			log.Warn("analytics stream update failed", zap.Error(updateErr))
		}
	}
}
