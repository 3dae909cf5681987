// Package modelevent provides types for event bus payloads and queue envelopes.
package modelevent

// Detail types published to the event bus.
const (
	DetailTypeEquipmentRequest = "Equipment Transaction Request"
	DetailTypeCoinbaseEvent    = "Coinbase Event"
)

// EquipmentRequestDetail is the bus payload emitted for each created action request row.
type EquipmentRequestDetail struct {
	ID          int64  `json:"id"`
	AccessoryID int64  `json:"accessory_id"`
	AsunaID     int64  `json:"asuna_id"`
	ReqAddress  string `json:"req_address"`
	ActionType  string `json:"action_type"`
	TxnHash     string `json:"txn_hash"`
}

// BusEnvelope is the shape the event bus wraps around a detail before queue delivery.
type BusEnvelope struct {
	Source     string        `json:"source"`
	DetailType string        `json:"detail-type"`
	Detail     CoinbaseEvent `json:"detail"`
}

// CoinbaseEvent is the webhook payload forwarded by the payment processor.
type CoinbaseEvent struct {
	ID            string      `json:"id"`
	ScheduledFor  string      `json:"scheduled_for"`
	AttemptNumber int         `json:"attempt_number"`
	Event         ChargeEvent `json:"event"`
}

type ChargeEvent struct {
	ID         string     `json:"id"`
	Resource   string     `json:"resource"`
	Type       string     `json:"type"`
	APIVersion string     `json:"api_version"`
	CreatedAt  string     `json:"created_at"`
	Data       ChargeData `json:"data"`
}

type ChargeData struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Resource  string `json:"resource"`
	HostedURL string `json:"hosted_url"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// Charge event types of interest to the ledger.
const (
	ChargeTypeConfirmed = "charge:confirmed"
	ChargeTypePending   = "charge:pending"
	ChargeTypeFailed    = "charge:failed"
)
