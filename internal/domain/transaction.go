package domain

// Action is the economic action inferred from a transaction's log events
// relative to the observed wallet address.
type Action string

const (
	ActionSwap     Action = "Swap"
	ActionTransfer Action = "Transfer"
	ActionApproval Action = "Approval"
	ActionOther    Action = "Other"
)

// TokenLeg describes one side of a token movement.
type TokenLeg struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
	Logo   string `json:"logo,omitempty"`
}

// ClassifiedTransaction is the pipeline's output record: an on-chain
// transaction reduced to its economic action for the attributed user.
// A Swap carries both legs, a Transfer only the sent leg, Approval and
// Other carry neither.
type ClassifiedTransaction struct {
	TxHash    string      `json:"tx_hash"`
	Chain     string      `json:"chain"`
	Timestamp int64       `json:"timestamp"`
	User      UserProfile `json:"user"`
	Action    Action      `json:"action"`
	Sent      *TokenLeg   `json:"sent,omitempty"`
	Received  *TokenLeg   `json:"received,omitempty"`
	USDValue  float64     `json:"usd_value,omitempty"`
}
