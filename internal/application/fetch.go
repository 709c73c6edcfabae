package application

import (
	"context"
	"errors"
	"log/slog"

	"tradefeed/internal/domain"
)

// FetchStatus tags the outcome of one (address, chain) fetch so callers can
// tell confirmed inactivity apart from provider failures. Both degrade to
// zero rows for the subscriber.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchEmpty
	FetchProviderError
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchEmpty:
		return "empty"
	case FetchProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// FetchResult carries the classified transactions of one fetch together with
// its tagged outcome.
type FetchResult struct {
	Status       FetchStatus
	Transactions []domain.ClassifiedTransaction
	Err          error
}

// RawTransactionSource returns the most recent raw transactions for an
// address on one chain.
type RawTransactionSource interface {
	TransactionsForAddress(ctx context.Context, chain, address string) ([]domain.RawTransaction, error)
}

// ChainFetcher fetches and classifies transactions for an address on one
// chain, attributing every surviving record to user.
type ChainFetcher interface {
	FetchTransactions(ctx context.Context, chain, address string, user domain.UserProfile) FetchResult
}

// ClassifyingFetcher composes a raw transaction source with the classifier.
type ClassifyingFetcher struct {
	source     RawTransactionSource
	classifier Classifier
	logger     *slog.Logger
}

func NewClassifyingFetcher(source RawTransactionSource, classifier Classifier, logger *slog.Logger) (*ClassifyingFetcher, error) {
	if source == nil {
		return nil, errors.New("raw transaction source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifyingFetcher{source: source, classifier: classifier, logger: logger}, nil
}

func (f *ClassifyingFetcher) FetchTransactions(ctx context.Context, chain, address string, user domain.UserProfile) FetchResult {
	raw, err := f.source.TransactionsForAddress(ctx, chain, address)
	if err != nil {
		f.logger.Warn("chain fetch failed", "chain", chain, "address", address, "err", err)
		return FetchResult{Status: FetchProviderError, Err: err}
	}

	classified := make([]domain.ClassifiedTransaction, 0, len(raw))
	for _, tx := range raw {
		if record := f.classifier.Classify(tx, address, user); record != nil {
			classified = append(classified, *record)
		}
	}
	if len(classified) == 0 {
		return FetchResult{Status: FetchEmpty}
	}
	return FetchResult{Status: FetchOK, Transactions: classified}
}
