// Package charges consumes charge lifecycle notifications from the queue and
// applies them to the ledger. Delivery is at-least-once; every message is
// removed after one processing attempt, successful or not, so redelivery
// storms are traded away and delivery-layer faults fall to the dead-letter
// queue upstream.
package charges

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/models/modelevent"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/charges/v1/errors"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// QueueClient is the subset of the SQS API the consumer depends on.
type QueueClient interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

// Consumer is the long-lived queue consumer task.
type Consumer struct {
	ctx              context.Context
	client           QueueClient
	storage          storage.Charges
	queueConfig      *config.QueueConfig
	creditMultiplier int64
	log              *zerolog.Logger
	wg               *sync.WaitGroup
}

// InitConsumer initializes a charge event consumer.
func InitConsumer(ctx context.Context, client QueueClient, st storage.Charges, queueConfig *config.QueueConfig, commerceConfig *config.CommerceConfig, log *zerolog.Logger, wg *sync.WaitGroup) (*Consumer, error) {
	if client == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil queue client was passed to consumer initializer"}
	}
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to consumer initializer"}
	}
	consumer := &Consumer{
		ctx:              ctx,
		client:           client,
		storage:          st,
		queueConfig:      queueConfig,
		creditMultiplier: commerceConfig.CreditPerDollar,
		log:              log,
		wg:               wg,
	}
	return consumer, nil
}

// ListenAndProcess long-polls the queue until the parent context is done.
func (c *Consumer) ListenAndProcess() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.log.Info().Msg("started listening to queue for charge events")
		for {
			select {
			case <-c.ctx.Done():
				c.log.Info().Msg("stopped listening to queue for charge events")
				return
			default:
			}
			out, err := c.client.ReceiveMessage(c.ctx, &awssqs.ReceiveMessageInput{
				QueueUrl:            aws.String(c.queueConfig.QueueURL),
				MaxNumberOfMessages: c.queueConfig.BatchSize,
				WaitTimeSeconds:     c.queueConfig.WaitSeconds,
			})
			if err != nil {
				if c.ctx.Err() != nil {
					continue
				}
				c.log.Warn().Err(err).Msg("queue receive failed")
				continue
			}
			for _, message := range out.Messages {
				c.handleMessage(message.Body, message.ReceiptHandle)
			}
		}
	}()
}

// handleMessage attempts processing once and removes the message regardless
// of the outcome.
func (c *Consumer) handleMessage(body *string, receiptHandle *string) {
	if body == nil {
		c.log.Error().Msg("record missing body")
	} else if err := c.Process(c.ctx, []byte(*body)); err != nil {
		c.log.Error().Err(err).Msg("charge event processing failed")
	}
	_, err := c.client.DeleteMessage(c.ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueConfig.QueueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("queue delete failed")
	}
}

// Process applies one charge lifecycle event to the ledger. Reaching
// COMPLETED credits the owning wallet exactly once; the terminal transition
// is guarded in storage against redelivery.
func (c *Consumer) Process(ctx context.Context, body []byte) error {
	var envelope modelevent.BusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &serviceErrors.MalformedPayloadError{Err: err}
	}
	payload := envelope.Detail
	if payload.Event.Resource != "event" {
		return &serviceErrors.NotAnEventError{Resource: payload.Event.Resource}
	}
	chargeID := payload.Event.Data.ID
	c.log.Info().Msg(fmt.Sprintf("processing charge %s, type %s", chargeID, payload.Event.Type))

	charge, err := c.storage.GetCharge(ctx, chargeID)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if errors.As(err, &notFoundError) {
			return &serviceErrors.OrphanChargeError{ChargeID: chargeID}
		}
		return err
	}

	switch payload.Event.Type {
	case modelevent.ChargeTypeConfirmed:
		credited, err := c.storage.CompleteChargeAndCredit(ctx, charge.ID, c.creditMultiplier)
		if err != nil {
			return err
		}
		if !credited {
			c.log.Info().Msg(fmt.Sprintf("charge %s was already completed, skipping credit", charge.ID))
		}
	case modelevent.ChargeTypePending:
		return c.storage.SetChargeStatus(ctx, charge.ID, modelstorage.ChargeStatusPending)
	case modelevent.ChargeTypeFailed:
		return c.storage.SetChargeStatus(ctx, charge.ID, modelstorage.ChargeStatusFailed)
	default:
		c.log.Info().Msg(fmt.Sprintf("ignoring charge event type %s for %s", payload.Event.Type, charge.ID))
	}
	return nil
}
