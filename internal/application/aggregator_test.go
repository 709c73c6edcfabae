package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"tradefeed/internal/domain"
)

type fetchKey struct {
	chain   string
	address string
}

type mockFetcher struct {
	results map[fetchKey]FetchResult
	calls   []fetchKey
}

func (m *mockFetcher) FetchTransactions(ctx context.Context, chain, address string, user domain.UserProfile) FetchResult {
	key := fetchKey{chain: chain, address: address}
	m.calls = append(m.calls, key)
	result, ok := m.results[key]
	if !ok {
		return FetchResult{Status: FetchEmpty}
	}
	for i := range result.Transactions {
		result.Transactions[i].User = user
	}
	return result
}

type mockGraph struct {
	pages   map[string][]domain.FollowedProfile
	cursors map[string]string
	err     error
}

func (m *mockGraph) FollowingPage(ctx context.Context, fid uint64, cursor string) ([]domain.FollowedProfile, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.pages[cursor], m.cursors[cursor], nil
}

type mockStore struct {
	owners     map[string]domain.UserProfile
	wallets    map[uint64][]domain.Wallet
	ownerErr   error
	walletsErr error
}

func (m *mockStore) UserByWallet(ctx context.Context, address string) (domain.UserProfile, bool, error) {
	if m.ownerErr != nil {
		return domain.UserProfile{}, false, m.ownerErr
	}
	user, ok := m.owners[address]
	return user, ok, nil
}

func (m *mockStore) WalletsByFIDs(ctx context.Context, fids []uint64) ([]domain.Wallet, error) {
	if m.walletsErr != nil {
		return nil, m.walletsErr
	}
	var out []domain.Wallet
	for _, fid := range fids {
		out = append(out, m.wallets[fid]...)
	}
	return out, nil
}

func (m *mockStore) UpsertUsers(ctx context.Context, users []domain.UserProfile) error { return nil }
func (m *mockStore) UpsertWallets(ctx context.Context, wallets []domain.Wallet) error { return nil }

type mockPublisher struct {
	published [][]domain.ClassifiedTransaction
	err       error
}

func (m *mockPublisher) PublishTrades(ctx context.Context, trades []domain.ClassifiedTransaction) error {
	m.published = append(m.published, trades)
	return m.err
}

type mockObserver struct {
	mu       sync.Mutex
	started  int
	pushed   int
	outcomes []StreamOutcome
	fetches  map[string]int
}

func (m *mockObserver) OnStreamStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockObserver) OnTransactionsPushed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed += count
}

func (m *mockObserver) OnStreamClosed(outcome StreamOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockObserver) OnFetch(chain string, status FetchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetches == nil {
		m.fetches = make(map[string]int)
	}
	m.fetches[chain+"/"+status.String()]++
}

type cancelingPacer struct{ err error }

func (p cancelingPacer) Wait(ctx context.Context) error { return p.err }

func classifiedTx(hash, chain string, ts int64) domain.ClassifiedTransaction {
	return domain.ClassifiedTransaction{
		TxHash:    hash,
		Chain:     chain,
		Timestamp: ts,
		Action:    domain.ActionTransfer,
	}
}

func newTestAggregator(t *testing.T, fetcher ChainFetcher, graph SocialGraph, store IdentityStore, pacer Pacer, publisher TradePublisher, observer StreamObserver) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(fetcher, graph, store, pacer, publisher, observer, nil, AggregatorConfig{
		Chains: []string{"eth-mainnet", "monad-testnet"},
	})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return agg
}

func drain(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	for event := range events {
		out = append(out, event)
	}
	return out
}

func TestTransactionsByAddress_EmptyIsNotNil(t *testing.T) {
	agg := newTestAggregator(t, &mockFetcher{}, &mockGraph{}, &mockStore{}, nil, nil, nil)

	got, err := agg.TransactionsByAddress(context.Background(), "0xAAA0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("TransactionsByAddress: %v", err)
	}
	if got == nil {
		t.Fatal("result must be an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no transactions, got %d", len(got))
	}
}

func TestTransactionsByAddress_MergesAndSortsNewestFirst(t *testing.T) {
	address := "0xaaa0000000000000000000000000000000000001"
	fetcher := &mockFetcher{results: map[fetchKey]FetchResult{
		{chain: "eth-mainnet", address: address}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x1", "eth-mainnet", 100), classifiedTx("0x2", "eth-mainnet", 300)},
		},
		{chain: "monad-testnet", address: address}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x3", "monad-testnet", 200)},
		},
	}}
	store := &mockStore{owners: map[string]domain.UserProfile{
		address: {FID: 7, Username: "alice"},
	}}
	agg := newTestAggregator(t, fetcher, &mockGraph{}, store, nil, nil, nil)

	// Mixed-case input resolves against the lowercased wallet key.
	got, err := agg.TransactionsByAddress(context.Background(), "0xAAA0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("TransactionsByAddress: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Fatalf("not sorted newest first: %d before %d", got[i-1].Timestamp, got[i].Timestamp)
		}
	}
	for _, tx := range got {
		if tx.User.FID != 7 {
			t.Errorf("tx %s attributed to fid %d, want 7", tx.TxHash, tx.User.FID)
		}
	}
}

func TestTransactionsByAddress_UnknownOwnerOnStoreError(t *testing.T) {
	address := "0xaaa0000000000000000000000000000000000001"
	fetcher := &mockFetcher{results: map[fetchKey]FetchResult{
		{chain: "eth-mainnet", address: address}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x1", "eth-mainnet", 100)},
		},
	}}
	store := &mockStore{ownerErr: errors.New("db down")}
	agg := newTestAggregator(t, fetcher, &mockGraph{}, store, nil, nil, nil)

	got, err := agg.TransactionsByAddress(context.Background(), address)
	if err != nil {
		t.Fatalf("a store outage must not fail the request: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}
	if got[0].User.Username != "unknown" {
		t.Errorf("user = %+v, want the unknown placeholder", got[0].User)
	}
}

func TestStreamByFID_NoFollows(t *testing.T) {
	observer := &mockObserver{}
	agg := newTestAggregator(t, &mockFetcher{}, &mockGraph{}, &mockStore{}, nil, nil, observer)

	events := drain(t, agg.StreamByFID(context.Background(), 7))
	if len(events) != 1 {
		t.Fatalf("expected a single terminal event, got %d", len(events))
	}
	if events[0].Type != StreamEventDone || events[0].Message != "No one followed." {
		t.Errorf("terminal event = %+v", events[0])
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != StreamOutcomeDone {
		t.Errorf("outcomes = %v", observer.outcomes)
	}
}

func TestStreamByFID_PushesWalletBatchesThenDone(t *testing.T) {
	wallet := "0xbbb0000000000000000000000000000000000002"
	alice := domain.UserProfile{FID: 7, Username: "alice"}
	graph := &mockGraph{pages: map[string][]domain.FollowedProfile{
		"": {{User: alice}},
	}}
	store := &mockStore{wallets: map[uint64][]domain.Wallet{
		7: {
			{Address: wallet, UserFID: 7, Chain: "ethereum"},
			{Address: "solwallet123", UserFID: 7, Chain: "solana"},
		},
	}}
	fetcher := &mockFetcher{results: map[fetchKey]FetchResult{
		{chain: "eth-mainnet", address: wallet}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x1", "eth-mainnet", 100)},
		},
		{chain: "monad-testnet", address: wallet}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x2", "monad-testnet", 200)},
		},
	}}
	publisher := &mockPublisher{}
	observer := &mockObserver{}
	agg := newTestAggregator(t, fetcher, graph, store, nil, publisher, observer)

	events := drain(t, agg.StreamByFID(context.Background(), 1))
	if len(events) != 2 {
		t.Fatalf("expected transaction + done, got %d events: %+v", len(events), events)
	}
	if events[0].Type != StreamEventTransaction || len(events[0].Transactions) != 2 {
		t.Fatalf("first event = %+v", events[0])
	}
	for _, tx := range events[0].Transactions {
		if tx.User.FID != 7 {
			t.Errorf("tx %s attributed to fid %d, want 7", tx.TxHash, tx.User.FID)
		}
	}
	if events[1].Type != StreamEventDone || events[1].Message != "Stream completed" {
		t.Fatalf("terminal event = %+v", events[1])
	}

	// The non-EVM wallet never reaches the fetcher.
	for _, call := range fetcher.calls {
		if !strings.HasPrefix(call.address, "0x") {
			t.Errorf("fetched non-EVM wallet %q", call.address)
		}
	}

	if len(publisher.published) != 1 || len(publisher.published[0]) != 2 {
		t.Errorf("published = %+v", publisher.published)
	}
	if observer.pushed != 2 {
		t.Errorf("observer pushed = %d, want 2", observer.pushed)
	}
}

func TestStreamByFID_GraphErrorEmitsErrorEvent(t *testing.T) {
	observer := &mockObserver{}
	graph := &mockGraph{err: errors.New("upstream 500")}
	agg := newTestAggregator(t, &mockFetcher{}, graph, &mockStore{}, nil, nil, observer)

	events := drain(t, agg.StreamByFID(context.Background(), 7))
	if len(events) != 1 {
		t.Fatalf("expected a single terminal event, got %d", len(events))
	}
	if events[0].Type != StreamEventError || events[0].Message != "Streaming failed" {
		t.Fatalf("terminal event = %+v", events[0])
	}
	if events[0].Detail == "" {
		t.Error("error detail should carry the cause")
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != StreamOutcomeError {
		t.Errorf("outcomes = %v", observer.outcomes)
	}
}

func TestStreamByFID_GraphCancellationIsNotAnError(t *testing.T) {
	observer := &mockObserver{}
	graph := &mockGraph{err: fmt.Errorf("fetch following page: %w", context.Canceled)}
	agg := newTestAggregator(t, &mockFetcher{}, graph, &mockStore{}, nil, nil, observer)

	events := drain(t, agg.StreamByFID(context.Background(), 7))
	if len(events) != 0 {
		t.Fatalf("client disconnect must not emit a terminal event, got %+v", events)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != StreamOutcomeCanceled {
		t.Errorf("outcomes = %v, want canceled", observer.outcomes)
	}
}

func TestStreamByFID_WalletLookupErrorSkipsPage(t *testing.T) {
	graph := &mockGraph{pages: map[string][]domain.FollowedProfile{
		"": {{User: domain.UserProfile{FID: 7}}},
	}}
	store := &mockStore{walletsErr: errors.New("db down")}
	agg := newTestAggregator(t, &mockFetcher{}, graph, store, nil, nil, nil)

	events := drain(t, agg.StreamByFID(context.Background(), 1))
	if len(events) != 1 || events[0].Type != StreamEventDone {
		t.Fatalf("expected the stream to complete past the bad page, got %+v", events)
	}
	if events[0].Message != "Stream completed" {
		t.Errorf("message = %q", events[0].Message)
	}
}

func TestStreamByFID_CancellationSuppressesTerminalEvent(t *testing.T) {
	wallet := "0xbbb0000000000000000000000000000000000002"
	graph := &mockGraph{pages: map[string][]domain.FollowedProfile{
		"": {{User: domain.UserProfile{FID: 7}}},
	}}
	store := &mockStore{wallets: map[uint64][]domain.Wallet{
		7: {{Address: wallet, UserFID: 7, Chain: "ethereum"}},
	}}
	observer := &mockObserver{}
	pacer := cancelingPacer{err: context.Canceled}
	agg := newTestAggregator(t, &mockFetcher{}, graph, store, pacer, nil, observer)

	events := drain(t, agg.StreamByFID(context.Background(), 1))
	if len(events) != 0 {
		t.Fatalf("canceled stream must not emit a terminal event, got %+v", events)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != StreamOutcomeCanceled {
		t.Errorf("outcomes = %v", observer.outcomes)
	}
}

func TestStreamByFID_PaginationCoversAllPages(t *testing.T) {
	walletA := "0xaaa0000000000000000000000000000000000001"
	walletB := "0xbbb0000000000000000000000000000000000002"
	graph := &mockGraph{
		pages: map[string][]domain.FollowedProfile{
			"":      {{User: domain.UserProfile{FID: 1}}},
			"page2": {{User: domain.UserProfile{FID: 2}}},
		},
		cursors: map[string]string{"": "page2"},
	}
	store := &mockStore{wallets: map[uint64][]domain.Wallet{
		1: {{Address: walletA, UserFID: 1, Chain: "ethereum"}},
		2: {{Address: walletB, UserFID: 2, Chain: "ethereum"}},
	}}
	fetcher := &mockFetcher{results: map[fetchKey]FetchResult{
		{chain: "eth-mainnet", address: walletA}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x1", "eth-mainnet", 100)},
		},
		{chain: "eth-mainnet", address: walletB}: {
			Status:       FetchOK,
			Transactions: []domain.ClassifiedTransaction{classifiedTx("0x2", "eth-mainnet", 200)},
		},
	}}
	agg := newTestAggregator(t, fetcher, graph, store, nil, nil, nil)

	events := drain(t, agg.StreamByFID(context.Background(), 9))
	if len(events) != 3 {
		t.Fatalf("expected 2 transaction events + done, got %+v", events)
	}
	if events[0].Transactions[0].TxHash != "0x1" || events[1].Transactions[0].TxHash != "0x2" {
		t.Errorf("pages streamed out of order: %+v", events)
	}
}

func TestNewAggregator_Validation(t *testing.T) {
	if _, err := NewAggregator(nil, &mockGraph{}, &mockStore{}, nil, nil, nil, nil, AggregatorConfig{Chains: []string{"eth-mainnet"}}); err == nil {
		t.Error("nil fetcher should be rejected")
	}
	if _, err := NewAggregator(&mockFetcher{}, &mockGraph{}, &mockStore{}, nil, nil, nil, nil, AggregatorConfig{}); err == nil {
		t.Error("empty chain list should be rejected")
	}
}
