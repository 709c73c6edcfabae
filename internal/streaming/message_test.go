package streaming

import (
	"testing"

	"tradefeed/internal/domain"
)

func TestFromTrade(t *testing.T) {
	trade := domain.ClassifiedTransaction{
		TxHash:    "0xabc",
		Chain:     "eth-mainnet",
		Timestamp: 1717243200000,
		User:      domain.UserProfile{FID: 7, Username: "alice"},
		Action:    domain.ActionSwap,
		Sent:      &domain.TokenLeg{Token: "USDC", Amount: "1.5"},
		Received:  &domain.TokenLeg{Token: "WETH", Amount: "1"},
		USDValue:  25.5,
	}

	msg := FromTrade(trade)
	if msg.Type != MessageTypeTrade {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Chain != "eth-mainnet" || msg.TxHash != "0xabc" || msg.Timestamp != 1717243200000 {
		t.Errorf("envelope = %+v", msg)
	}
	if msg.FID != 7 || msg.Username != "alice" {
		t.Errorf("identity = fid %d, username %q", msg.FID, msg.Username)
	}
	if msg.SentToken != "USDC" || msg.SentAmount != "1.5" {
		t.Errorf("sent = %q %q", msg.SentToken, msg.SentAmount)
	}
	if msg.ReceivedToken != "WETH" || msg.ReceivedAmount != "1" {
		t.Errorf("received = %q %q", msg.ReceivedToken, msg.ReceivedAmount)
	}
}

func TestFromTrade_OneLeg(t *testing.T) {
	trade := domain.ClassifiedTransaction{
		TxHash: "0xabc",
		Chain:  "eth-mainnet",
		Action: domain.ActionTransfer,
		Sent:   &domain.TokenLeg{Token: "USDC", Amount: "1.5"},
	}

	msg := FromTrade(trade)
	if msg.ReceivedToken != "" || msg.ReceivedAmount != "" {
		t.Errorf("missing leg must stay empty, got %q %q", msg.ReceivedToken, msg.ReceivedAmount)
	}
}

func TestEncodeDecode(t *testing.T) {
	msg := FromTrade(domain.ClassifiedTransaction{
		TxHash: "0xabc",
		Chain:  "eth-mainnet",
		Action: domain.ActionTransfer,
	})

	payload, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != msg {
		t.Errorf("round trip mismatch: %+v vs %+v", decoded, msg)
	}
}

func TestEncode_Validation(t *testing.T) {
	if _, err := Encode(Message{Chain: "eth-mainnet", TxHash: "0x1"}); err == nil {
		t.Error("missing type should be rejected")
	}
	if _, err := Encode(Message{Type: MessageTypeTrade, TxHash: "0x1"}); err == nil {
		t.Error("missing chain should be rejected")
	}
	if _, err := Encode(Message{Type: MessageTypeTrade, Chain: "eth-mainnet"}); err == nil {
		t.Error("missing tx_hash should be rejected")
	}
}

func TestDecode_Validation(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("malformed payload should be rejected")
	}
	if _, err := Decode([]byte(`{"type":"trade","chain":"eth-mainnet"}`)); err == nil {
		t.Error("missing tx_hash should be rejected")
	}
}
