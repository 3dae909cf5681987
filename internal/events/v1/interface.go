// Package events defines the event bus publishing contract.
package events

import "context"

// Publisher delivers a detail payload to the event bus.
type Publisher interface {
	Publish(ctx context.Context, source string, detailType string, detail []byte) error
}
