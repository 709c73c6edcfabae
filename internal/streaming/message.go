package streaming

import (
	"encoding/json"
	"errors"

	"tradefeed/internal/domain"
)

type MessageType string

const (
	MessageTypeTrade MessageType = "trade"
)

// Message is the flat firehose envelope for one classified transaction.
type Message struct {
	Type           MessageType `json:"type"`
	Chain          string      `json:"chain"`
	TxHash         string      `json:"tx_hash"`
	Timestamp      int64       `json:"timestamp"`
	FID            uint64      `json:"fid"`
	Username       string      `json:"username,omitempty"`
	Action         string      `json:"action"`
	SentToken      string      `json:"sent_token,omitempty"`
	SentAmount     string      `json:"sent_amount,omitempty"`
	ReceivedToken  string      `json:"received_token,omitempty"`
	ReceivedAmount string      `json:"received_amount,omitempty"`
	USDValue       float64     `json:"usd_value,omitempty"`
	TraceID        string      `json:"trace_id,omitempty"`
}

// FromTrade flattens a classified transaction into a firehose message.
func FromTrade(trade domain.ClassifiedTransaction) Message {
	msg := Message{
		Type:      MessageTypeTrade,
		Chain:     trade.Chain,
		TxHash:    trade.TxHash,
		Timestamp: trade.Timestamp,
		FID:       trade.User.FID,
		Username:  trade.User.Username,
		Action:    string(trade.Action),
		USDValue:  trade.USDValue,
	}
	if trade.Sent != nil {
		msg.SentToken = trade.Sent.Token
		msg.SentAmount = trade.Sent.Amount
	}
	if trade.Received != nil {
		msg.ReceivedToken = trade.Received.Token
		msg.ReceivedAmount = trade.Received.Amount
	}
	return msg
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.Chain == "" {
		return nil, errors.New("chain is required")
	}
	if msg.TxHash == "" {
		return nil, errors.New("tx_hash is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.Chain == "" {
		return Message{}, errors.New("chain is missing")
	}
	if msg.TxHash == "" {
		return Message{}, errors.New("tx_hash is missing")
	}
	return msg, nil
}
