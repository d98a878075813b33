package model

// OperationKind names a committed pool operation.
type OperationKind string

const (
	OperationCreate   OperationKind = "create"
	OperationDeposit  OperationKind = "deposit"
	OperationSwap     OperationKind = "swap"
	OperationWithdraw OperationKind = "withdraw"
	OperationLock     OperationKind = "lock"
	OperationUnlock   OperationKind = "unlock"
)

// Swap direction values for OperationRecord.AssetIn.
const (
	AssetX = "x"
	AssetY = "y"
)

// OperationRecord is the journal entry of one committed operation.
//
// AmountX and AmountY are the X/Y legs moved by the operation: deposit
// debits, withdrawal returns, or the input and output of a swap (AssetIn
// tells which side was paid in). Reserves and LPSupply are the values after
// the operation.
type OperationRecord struct {
	ID         string        `json:"id"`
	Pool       string        `json:"pool"`
	Kind       OperationKind `json:"kind"`
	User       string        `json:"user"`
	AssetIn    string        `json:"asset_in,omitempty"`
	AmountX    uint64        `json:"amount_x"`
	AmountY    uint64        `json:"amount_y"`
	LPAmount   uint64        `json:"lp_amount"`
	FeeX       uint64        `json:"fee_x"`
	FeeY       uint64        `json:"fee_y"`
	ReserveX   uint64        `json:"reserve_x"`
	ReserveY   uint64        `json:"reserve_y"`
	LPSupply   uint64        `json:"lp_supply"`
	Timestamp  uint64        `json:"timestamp"`
	RecordedAt string        `json:"recorded_at"`
}
