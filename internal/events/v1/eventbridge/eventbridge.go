// Package eventbridge implements the event bus publishing contract on AWS EventBridge.
package eventbridge

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
)

// BusClient is the subset of the EventBridge API the publisher depends on.
type BusClient interface {
	PutEvents(ctx context.Context, params *awseventbridge.PutEventsInput, optFns ...func(*awseventbridge.Options)) (*awseventbridge.PutEventsOutput, error)
}

// Publisher publishes detail payloads to one named bus.
type Publisher struct {
	client       BusClient
	eventsConfig *config.EventsConfig
	log          *zerolog.Logger
}

// InitPublisher initializes an EventBridge publisher.
func InitPublisher(client BusClient, eventsConfig *config.EventsConfig, log *zerolog.Logger) *Publisher {
	log.Info().Msg("event bus publisher initialized")
	return &Publisher{client: client, eventsConfig: eventsConfig, log: log}
}

// Publish sends one entry to the bus. A response carrying a failed entry count
// is treated as a publish failure so the outbox row stays unsent.
func (p *Publisher) Publish(ctx context.Context, source string, detailType string, detail []byte) error {
	out, err := p.client.PutEvents(ctx, &awseventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventsConfig.BusName),
				Source:       aws.String(source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return err
	}
	if out.FailedEntryCount > 0 {
		return fmt.Errorf("event bus rejected %d entries", out.FailedEntryCount)
	}
	return nil
}
