package domain

import (
	"encoding/json"
	"time"
)

// RawTransaction is a transaction record as returned by the chain-data
// provider, with its decoded log events and USD quotes.
type RawTransaction struct {
	TxHash        string    `json:"tx_hash"`
	ChainName     string    `json:"chain_name"`
	BlockSignedAt time.Time `json:"block_signed_at"`
	FromAddress   string    `json:"from_address"`
	ValueQuote    float64   `json:"value_quote"`
	GasQuote      float64   `json:"gas_quote"`
	LogEvents     LogEvents `json:"log_events"`
}

// LogEvents tolerates a missing, null, or non-array log_events field by
// decoding to an empty slice instead of failing the whole transaction.
type LogEvents []LogEvent

func (e *LogEvents) UnmarshalJSON(data []byte) error {
	var events []LogEvent
	if err := json.Unmarshal(data, &events); err != nil {
		*e = nil
		return nil
	}
	*e = events
	return nil
}

// LogEvent is a decoded contract event with token metadata for the
// emitting contract.
type LogEvent struct {
	Decoded          *DecodedEvent `json:"decoded"`
	ContractDecimals *int          `json:"sender_contract_decimals"`
	ContractTicker   string        `json:"sender_contract_ticker_symbol"`
	LogoURL          string        `json:"sender_logo_url"`
}

// DecodedEvent holds the event name and its named parameters.
type DecodedEvent struct {
	Name   string       `json:"name"`
	Params []EventParam `json:"params"`
}

// EventParam is a single decoded event parameter. Provider payloads carry
// values as strings, numbers, or booleans; everything is normalized to a
// string here since the classifier only compares and parses text.
type EventParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (p *EventParam) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Value = normalizeParamValue(raw.Value)
	return nil
}

func normalizeParamValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch typed := v.(type) {
	case json.Number:
		return typed.String()
	case float64:
		return json.Number(raw).String()
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Param returns the named parameter value and whether it was present.
func (d *DecodedEvent) Param(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, p := range d.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
