package equip

import (
	"sync"
	"time"
)

// leaseKey identifies one admission target.
type leaseKey struct {
	asunaID     int64
	accessoryID int64
	actionType  string
}

// lease marks a key Reserved; absence from the table means Free.
type lease struct {
	holder string
	until  time.Time
}

// admissionTable serializes admission per target key so two concurrent
// requests for the same accessory cannot both pass the pending check. The
// database partial unique index remains the backstop for multi-instance
// deployments.
type admissionTable struct {
	mu     sync.Mutex
	leases map[leaseKey]lease
	ttl    time.Duration
}

func newAdmissionTable(ttl time.Duration) *admissionTable {
	return &admissionTable{
		leases: make(map[leaseKey]lease),
		ttl:    ttl,
	}
}

// reserve acquires every key or none. On denial it returns the accessory ids
// whose keys are held by an unexpired lease.
func (t *admissionTable) reserve(holder string, asunaID int64, actionType string, accessoryIDs []int64) ([]int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	var conflicted []int64
	for _, accessoryID := range accessoryIDs {
		key := leaseKey{asunaID: asunaID, accessoryID: accessoryID, actionType: actionType}
		if held, ok := t.leases[key]; ok && held.until.After(now) {
			conflicted = append(conflicted, accessoryID)
		}
	}
	if len(conflicted) > 0 {
		return conflicted, false
	}
	for _, accessoryID := range accessoryIDs {
		key := leaseKey{asunaID: asunaID, accessoryID: accessoryID, actionType: actionType}
		t.leases[key] = lease{holder: holder, until: now.Add(t.ttl)}
	}
	return nil, true
}

// release frees the keys regardless of expiry.
func (t *admissionTable) release(asunaID int64, actionType string, accessoryIDs []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, accessoryID := range accessoryIDs {
		delete(t.leases, leaseKey{asunaID: asunaID, accessoryID: accessoryID, actionType: actionType})
	}
}
