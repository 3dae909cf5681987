// Package modeldto provides types for REST data exchange.
package modeldto

type (
	Login struct {
		Address   string `json:"address"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	Balance struct {
		CurrentAmount int64 `json:"current"`
	}
	NewActionRequest struct {
		ActionType   string  `json:"action_type"`
		AsunaID      int64   `json:"asuna_id"`
		AccessoryIDs []int64 `json:"accessory_ids"`
	}
	ActionRequest struct {
		ID          int64  `json:"id"`
		AsunaID     int64  `json:"asuna_id"`
		AccessoryID int64  `json:"accessory_id"`
		ActionType  string `json:"action_type"`
		TxnState    string `json:"txn_state"`
		ReqAddress  string `json:"req_address"`
		TxnHash     string `json:"txn_hash"`
		CreatedAt   string `json:"created_at"`
	}
	NewCharge struct {
		Amount int64 `json:"amount"`
	}
	Charge struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		HostedURL string `json:"hosted_url"`
	}
)
