package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"tradefeed/internal/domain"
)

// SocialGraph returns one page of an identity's follow list. An empty next
// cursor means the list is exhausted.
type SocialGraph interface {
	FollowingPage(ctx context.Context, fid uint64, cursor string) ([]domain.FollowedProfile, string, error)
}

// IdentityStore resolves and mirrors the social identity / wallet mapping.
type IdentityStore interface {
	UserByWallet(ctx context.Context, address string) (domain.UserProfile, bool, error)
	WalletsByFIDs(ctx context.Context, fids []uint64) ([]domain.Wallet, error)
	UpsertUsers(ctx context.Context, users []domain.UserProfile) error
	UpsertWallets(ctx context.Context, wallets []domain.Wallet) error
}

// TradePublisher mirrors classified trade batches onto a firehose.
type TradePublisher interface {
	PublishTrades(ctx context.Context, trades []domain.ClassifiedTransaction) error
}

// StreamOutcome is the terminal state of one streaming request.
type StreamOutcome string

const (
	StreamOutcomeDone     StreamOutcome = "done"
	StreamOutcomeError    StreamOutcome = "error"
	StreamOutcomeCanceled StreamOutcome = "canceled"
)

// StreamObserver receives aggregation progress callbacks.
type StreamObserver interface {
	OnStreamStarted()
	OnTransactionsPushed(count int)
	OnStreamClosed(outcome StreamOutcome)
	OnFetch(chain string, status FetchStatus)
}

// StreamEventType names the server-push events of a streaming request.
type StreamEventType string

const (
	StreamEventTransaction StreamEventType = "transaction"
	StreamEventDone        StreamEventType = "done"
	StreamEventError       StreamEventType = "error"
)

// StreamEvent is one unit pushed to a streaming subscriber.
type StreamEvent struct {
	Type         StreamEventType
	Transactions []domain.ClassifiedTransaction
	Message      string
	Detail       string
}

// AggregatorConfig holds the per-deployment aggregation knobs.
type AggregatorConfig struct {
	Chains         []string
	FollowPageSize int
}

// Aggregator drives the transaction aggregation pipeline in both operating
// modes: synchronous by-address lookup and incremental by-identity
// streaming.
type Aggregator struct {
	fetcher   ChainFetcher
	graph     SocialGraph
	store     IdentityStore
	pacer     Pacer
	publisher TradePublisher
	observer  StreamObserver
	logger    *slog.Logger
	cfg       AggregatorConfig
}

// NewAggregator wires the aggregation pipeline. publisher and observer may
// be nil.
func NewAggregator(
	fetcher ChainFetcher,
	graph SocialGraph,
	store IdentityStore,
	pacer Pacer,
	publisher TradePublisher,
	observer StreamObserver,
	logger *slog.Logger,
	cfg AggregatorConfig,
) (*Aggregator, error) {
	if fetcher == nil || graph == nil || store == nil {
		return nil, errors.New("aggregator dependencies must not be nil")
	}
	if len(cfg.Chains) == 0 {
		return nil, errors.New("at least one chain is required")
	}
	if cfg.FollowPageSize <= 0 {
		cfg.FollowPageSize = 100
	}
	if pacer == nil {
		pacer = NopPacer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		fetcher:   fetcher,
		graph:     graph,
		store:     store,
		pacer:     pacer,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// TransactionsByAddress fetches and classifies the most recent transactions
// of one wallet across all configured chains, newest first. The result is
// never nil: an inactive address yields an empty slice.
func (a *Aggregator) TransactionsByAddress(ctx context.Context, address string) ([]domain.ClassifiedTransaction, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, errors.New("address is required")
	}

	user := domain.UnknownUser()
	if resolved, ok, err := a.store.UserByWallet(ctx, address); err != nil {
		a.logger.Warn("wallet owner lookup failed", "address", address, "err", err)
	} else if ok {
		user = resolved
	}

	transactions := make([]domain.ClassifiedTransaction, 0)
	for _, chain := range a.cfg.Chains {
		result := a.fetcher.FetchTransactions(ctx, chain, address, user)
		a.observeFetch(chain, result)
		transactions = append(transactions, result.Transactions...)
	}

	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].Timestamp > transactions[j].Timestamp
	})
	return transactions, nil
}

// StreamByFID streams classified transactions of everyone fid follows. The
// returned channel delivers zero or more transaction events followed by
// exactly one terminal done or error event, then closes. Canceling ctx
// stops the stream; no terminal event is delivered in that case.
func (a *Aggregator) StreamByFID(ctx context.Context, fid uint64) <-chan StreamEvent {
	events := make(chan StreamEvent, 1)
	go a.streamFollows(ctx, fid, events)
	return events
}

func (a *Aggregator) streamFollows(ctx context.Context, fid uint64, events chan<- StreamEvent) {
	defer close(events)
	if a.observer != nil {
		a.observer.OnStreamStarted()
	}

	cursor := ""
	anyFollowed := false
	for {
		page, next, err := a.graph.FollowingPage(ctx, fid, cursor)
		if err != nil {
			if isCanceled(err) {
				a.closeCanceled(fid, err)
			} else {
				a.closeWithError(ctx, events, fid, err)
			}
			return
		}
		if len(page) > 0 {
			anyFollowed = true
			if err := a.streamPage(ctx, page, events); err != nil {
				if isCanceled(err) {
					a.closeCanceled(fid, err)
				} else {
					a.closeWithError(ctx, events, fid, err)
				}
				return
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	message := "Stream completed"
	if !anyFollowed {
		message = "No one followed."
	}
	if err := a.push(ctx, events, StreamEvent{Type: StreamEventDone, Message: message}); err != nil {
		a.closeCanceled(fid, err)
		return
	}
	if a.observer != nil {
		a.observer.OnStreamClosed(StreamOutcomeDone)
	}
}

// streamPage resolves one follow page's wallets and pushes each wallet's
// qualifying transactions as soon as they are classified.
func (a *Aggregator) streamPage(ctx context.Context, page []domain.FollowedProfile, events chan<- StreamEvent) error {
	fids := make([]uint64, 0, len(page))
	users := make(map[uint64]domain.UserProfile, len(page))
	for _, profile := range page {
		fids = append(fids, profile.User.FID)
		users[profile.User.FID] = profile.User
	}

	wallets, err := a.store.WalletsByFIDs(ctx, fids)
	if err != nil {
		// Partial data beats aborting the stream: skip this page.
		a.logger.Warn("wallet batch lookup failed", "fids", len(fids), "err", err)
		return nil
	}

	for _, wallet := range wallets {
		if !strings.HasPrefix(wallet.Address, "0x") {
			continue
		}
		user, ok := users[wallet.UserFID]
		if !ok {
			continue
		}

		var batch []domain.ClassifiedTransaction
		for _, chain := range a.cfg.Chains {
			result := a.fetcher.FetchTransactions(ctx, chain, wallet.Address, user)
			a.observeFetch(chain, result)
			batch = append(batch, result.Transactions...)
		}

		if len(batch) > 0 {
			if a.publisher != nil {
				if err := a.publisher.PublishTrades(ctx, batch); err != nil {
					a.logger.Warn("trade publish failed", "count", len(batch), "err", err)
				}
			}
			if err := a.push(ctx, events, StreamEvent{Type: StreamEventTransaction, Transactions: batch}); err != nil {
				return err
			}
			if a.observer != nil {
				a.observer.OnTransactionsPushed(len(batch))
			}
		}

		if err := a.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) push(ctx context.Context, events chan<- StreamEvent, event StreamEvent) error {
	select {
	case events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Aggregator) closeWithError(ctx context.Context, events chan<- StreamEvent, fid uint64, err error) {
	a.logger.Error("stream failed", "fid", fid, "err", err)
	_ = a.push(ctx, events, StreamEvent{
		Type:    StreamEventError,
		Message: "Streaming failed",
		Detail:  err.Error(),
	})
	if a.observer != nil {
		a.observer.OnStreamClosed(StreamOutcomeError)
	}
}

func (a *Aggregator) closeCanceled(fid uint64, err error) {
	a.logger.Debug("stream canceled", "fid", fid, "err", err)
	if a.observer != nil {
		a.observer.OnStreamClosed(StreamOutcomeCanceled)
	}
}

func (a *Aggregator) observeFetch(chain string, result FetchResult) {
	if result.Status == FetchProviderError {
		a.logger.Warn("provider fetch degraded to empty", "chain", chain, "err", result.Err)
	}
	if a.observer != nil {
		a.observer.OnFetch(chain, result.Status)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
