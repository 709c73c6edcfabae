package domain

import (
	"encoding/json"
	"testing"
)

func TestRawTransaction_Unmarshal(t *testing.T) {
	payload := `{
		"tx_hash": "0xabc",
		"chain_name": "eth-mainnet",
		"block_signed_at": "2024-06-01T12:00:00Z",
		"value_quote": 25.5,
		"gas_quote": 0.4,
		"log_events": [
			{
				"sender_contract_decimals": 6,
				"sender_contract_ticker_symbol": "USDC",
				"sender_logo_url": "https://example.com/usdc.png",
				"decoded": {
					"name": "Transfer",
					"params": [
						{"name": "from", "value": "0x1"},
						{"name": "to", "value": "0x2"},
						{"name": "value", "value": 1500000},
						{"name": "flag", "value": true}
					]
				}
			},
			{"decoded": null}
		]
	}`

	var tx RawTransaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.TxHash != "0xabc" || tx.ValueQuote != 25.5 {
		t.Errorf("tx = %+v", tx)
	}
	if len(tx.LogEvents) != 2 {
		t.Fatalf("expected 2 log events, got %d", len(tx.LogEvents))
	}

	event := tx.LogEvents[0]
	if event.ContractDecimals == nil || *event.ContractDecimals != 6 {
		t.Errorf("decimals = %v", event.ContractDecimals)
	}
	if value, ok := event.Decoded.Param("value"); !ok || value != "1500000" {
		t.Errorf("numeric param = %q, %v", value, ok)
	}
	if flag, _ := event.Decoded.Param("flag"); flag != "true" {
		t.Errorf("bool param = %q", flag)
	}
	if _, ok := event.Decoded.Param("absent"); ok {
		t.Error("absent param reported present")
	}
	if tx.LogEvents[1].Decoded != nil {
		t.Error("null decoded should stay nil")
	}
}

func TestLogEvents_TolerantDecode(t *testing.T) {
	cases := []string{
		`{"tx_hash": "0x1"}`,
		`{"tx_hash": "0x1", "log_events": null}`,
		`{"tx_hash": "0x1", "log_events": "oops"}`,
		`{"tx_hash": "0x1", "log_events": 42}`,
	}
	for _, payload := range cases {
		var tx RawTransaction
		if err := json.Unmarshal([]byte(payload), &tx); err != nil {
			t.Errorf("payload %q: %v", payload, err)
		}
		if tx.LogEvents != nil {
			t.Errorf("payload %q: log events = %+v, want nil", payload, tx.LogEvents)
		}
	}
}

func TestUnknownUser(t *testing.T) {
	user := UnknownUser()
	if user.FID != 0 || user.Username != "unknown" || user.DisplayName != "Unknown" {
		t.Errorf("placeholder = %+v", user)
	}
}
