package application

import (
	"strings"

	"tradefeed/internal/domain"
)

const defaultTokenDecimals = 18

// Classifier reduces a raw provider transaction to the economic action it
// represents for one observed wallet address.
type Classifier struct {
	// MinUSDValue and MinGasQuote form the dust filter: a Swap or Transfer
	// surfaces only when its quoted USD value exceeds MinUSDValue or its
	// quoted gas cost exceeds MinGasQuote.
	MinUSDValue float64
	MinGasQuote float64
}

func NewClassifier(minUSDValue, minGasQuote float64) Classifier {
	return Classifier{MinUSDValue: minUSDValue, MinGasQuote: minGasQuote}
}

// Classify returns the classified record for tx relative to address, or nil
// when the transaction should not surface. Classification is a pure function
// of its inputs: the same transaction always yields the same record.
func (c Classifier) Classify(tx domain.RawTransaction, address string, user domain.UserProfile) *domain.ClassifiedTransaction {
	observed := strings.ToLower(address)

	var sent, received *domain.TokenLeg
	for i := range tx.LogEvents {
		event := &tx.LogEvents[i]
		if event.Decoded == nil || event.Decoded.Name != "Transfer" {
			continue
		}
		from, _ := event.Decoded.Param("from")
		to, _ := event.Decoded.Param("to")
		value, _ := event.Decoded.Param("value")
		if from == "" || to == "" || value == "" {
			continue
		}

		decimals := defaultTokenDecimals
		if event.ContractDecimals != nil {
			decimals = *event.ContractDecimals
		}
		leg := &domain.TokenLeg{
			Token:  tokenSymbol(event.ContractTicker),
			Amount: FormatTokenAmount(value, decimals),
			Logo:   event.LogoURL,
		}

		// One event fills at most one leg, first match wins per direction.
		switch {
		case sent == nil && strings.EqualFold(from, observed):
			sent = leg
		case received == nil && strings.EqualFold(to, observed):
			received = leg
		}
	}

	action := domain.ActionOther
	switch {
	case sent != nil && received != nil:
		action = domain.ActionSwap
	case sent != nil:
		action = domain.ActionTransfer
	case hasApprovalEvent(tx.LogEvents):
		action = domain.ActionApproval
	}

	if action != domain.ActionSwap && action != domain.ActionTransfer {
		return nil
	}
	if tx.ValueQuote <= c.MinUSDValue && tx.GasQuote <= c.MinGasQuote {
		return nil
	}

	return &domain.ClassifiedTransaction{
		TxHash:    tx.TxHash,
		Chain:     tx.ChainName,
		Timestamp: tx.BlockSignedAt.UnixMilli(),
		User:      user,
		Action:    action,
		Sent:      sent,
		Received:  received,
		USDValue:  tx.ValueQuote,
	}
}

func hasApprovalEvent(events domain.LogEvents) bool {
	for i := range events {
		if events[i].Decoded != nil && events[i].Decoded.Name == "Approval" {
			return true
		}
	}
	return false
}

func tokenSymbol(ticker string) string {
	if strings.TrimSpace(ticker) == "" {
		return "Unknown"
	}
	return ticker
}
