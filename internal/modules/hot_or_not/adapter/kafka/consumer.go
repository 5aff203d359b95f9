// Package kafka triggers slot settlement from a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/usecase"
	"github.com/frankieli/hot_or_not/pkg/logger"
)

const (
	ActionTabulate = "tabulate"
	ActionInform   = "inform"

	requestIDHeader = "request_id"
)

// Config of the slot trigger consumer.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// Settler is the part of the settlement use case the consumer drives.
type Settler interface {
	TabulateSlot(ctx context.Context, postID uint64, slotID uint8) usecase.NotifySummary
	InformParticipants(ctx context.Context, postID uint64, slotID uint8) usecase.NotifySummary
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Trigger is one decoded slot message.
type Trigger struct {
	PostID uint64
	SlotID uint8
	Action string
}

type triggerEnvelope struct {
	PostID *uint64 `json:"post_id"`
	SlotID *uint64 `json:"slot_id"`
	Action string  `json:"action"`
}

// DecodeTrigger parses {"post_id":..,"slot_id":..,"action":"tabulate"|"inform"}.
// A missing action means tabulate.
func DecodeTrigger(raw []byte) (Trigger, error) {
	var env triggerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Trigger{}, fmt.Errorf("decode slot trigger: %w", err)
	}
	if env.PostID == nil {
		return Trigger{}, errors.New("post_id missing")
	}
	if env.SlotID == nil {
		return Trigger{}, fmt.Errorf("%w: slot_id missing", domain.ErrInvalidSlot)
	}
	if *env.SlotID > math.MaxUint8 {
		return Trigger{}, fmt.Errorf("%w: %d", domain.ErrInvalidSlot, *env.SlotID)
	}

	action := strings.ToLower(strings.TrimSpace(env.Action))
	switch action {
	case "":
		action = ActionTabulate
	case ActionTabulate, ActionInform:
	default:
		return Trigger{}, fmt.Errorf("unknown action %q", env.Action)
	}
	return Trigger{PostID: *env.PostID, SlotID: uint8(*env.SlotID), Action: action}, nil
}

// Consumer reads slot triggers and runs the matching use case.
type Consumer struct {
	cfg     Config
	reader  messageReader
	settler Settler
	poll    time.Duration
}

func NewConsumer(cfg Config, settler Settler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("slot trigger topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(cfg, reader, settler), nil
}

func newConsumer(cfg Config, reader messageReader, settler Settler) *Consumer {
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Consumer{cfg: cfg, reader: reader, settler: settler, poll: poll}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run blocks until ctx is cancelled or the reader is closed. Messages that
// fail to decode are logged and committed so they are not redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	logger.InfoGlobal().
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Strs("brokers", c.cfg.Brokers).
		Msg("Slot trigger consumer started")
	defer logger.InfoGlobal().Msg("Slot trigger consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			logger.ErrorGlobal().Err(err).Msg("Slot trigger fetch failed")
			continue
		}

		c.handle(ctx, msg)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			logger.ErrorGlobal().Err(err).Int64("offset", msg.Offset).Msg("Slot trigger commit failed")
		}
		commitCancel()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctx = logger.WithRequestID(ctx, messageRequestID(msg))

	trigger, err := DecodeTrigger(msg.Value)
	if err != nil {
		logger.Warn(ctx).Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed slot trigger")
		return
	}

	var summary usecase.NotifySummary
	switch trigger.Action {
	case ActionInform:
		summary = c.settler.InformParticipants(ctx, trigger.PostID, trigger.SlotID)
	default:
		summary = c.settler.TabulateSlot(ctx, trigger.PostID, trigger.SlotID)
	}

	logger.Info(ctx).
		Str("action", trigger.Action).
		Uint64("post_id", trigger.PostID).
		Uint8("slot_id", trigger.SlotID).
		Int("notified", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Slot trigger handled")
}

// messageRequestID reuses the producer's request id header when present.
func messageRequestID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == requestIDHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return logger.GenerateRequestID()
}
