// Package modelstorage provides types for storage entries.
package modelstorage

// Action types for accessory requests.
const (
	ActionTypeEquip   = "Equip"
	ActionTypeUnequip = "Unequip"
)

// Transaction states for accessory requests.
const (
	TxnStatePending = "Pending"
	TxnStateSuccess = "Success"
)

// Charge lifecycle statuses as reported by the payment processor.
const (
	ChargeStatusNew        = "NEW"
	ChargeStatusPending    = "PENDING"
	ChargeStatusCompleted  = "COMPLETED"
	ChargeStatusFailed     = "FAILED"
	ChargeStatusUnresolved = "UNRESOLVED"
	ChargeStatusResolved   = "RESOLVED"
)

type UserStorageEntry struct {
	ID           uint   `db:"id"`
	UserID       string `db:"user_id"`
	Address      string `db:"address"`
	RegisteredAt string `db:"registered_at"`
}

type WalletStorageEntry struct {
	ID      uint   `db:"id"`
	UserID  string `db:"user_id"`
	Balance int64  `db:"balance"`
}

type ActionRequestStorageEntry struct {
	ID          int64  `db:"id"`
	AsunaID     int64  `db:"asuna_id"`
	AccessoryID int64  `db:"accessory_id"`
	ActionType  string `db:"action_type"`
	TxnState    string `db:"txn_state"`
	ReqAddress  string `db:"req_address"`
	TxnHash     string `db:"txn_hash"`
	CreatedAt   string `db:"created_at"`
}

type ChargeStorageEntry struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Amount    int64  `db:"amount"`
	Status    string `db:"status"`
	HostedURL string `db:"hosted_url"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type OutboxStorageEntry struct {
	ID         int64  `db:"id"`
	Source     string `db:"source"`
	DetailType string `db:"detail_type"`
	Detail     []byte `db:"detail"`
	CreatedAt  string `db:"created_at"`
}
