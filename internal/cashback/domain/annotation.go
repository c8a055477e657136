package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rebata/pkg/money"
	"gorm.io/datatypes"
)

// Annotation is the structured cashback marker embedded on the order
// record. It is rewritten in the same transaction as the matching ledger
// mutation and is the caller-visible view of what happened; the ledger
// entries remain the authoritative idempotency gate.
type Annotation struct {
	Applied   bool              `json:"applied"`
	ProgramID string            `json:"program_id,omitempty"`
	Percent   string            `json:"percent,omitempty"`
	Base      string            `json:"base,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	AppliedAt *time.Time        `json:"applied_at,omitempty"`
	Reversals map[string]string `json:"reversals,omitempty"`
}

// ParseAnnotation reads the stored annotation. Absent or corrupt payloads
// yield the empty annotation; the order record is not the system of record
// for money, so a bad blob must not crash the operation.
func ParseAnnotation(raw datatypes.JSON) Annotation {
	if len(raw) == 0 {
		return Annotation{}
	}
	var a Annotation
	if err := json.Unmarshal(raw, &a); err != nil {
		return Annotation{}
	}
	return a
}

// JSON renders the annotation for storage.
func (a Annotation) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ReversedTotal sums every reversal already recorded on the order.
func (a Annotation) ReversedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range a.Reversals {
		total = total.Add(money.Parse(amount))
	}
	return total
}
