package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tradefeed/internal/domain"
)

// FollowSync mirrors an identity's follow list into the identity/wallet
// store.
type FollowSync struct {
	graph  SocialGraph
	store  IdentityStore
	logger *slog.Logger
}

func NewFollowSync(graph SocialGraph, store IdentityStore, logger *slog.Logger) (*FollowSync, error) {
	if graph == nil || store == nil {
		return nil, errors.New("follow sync dependencies must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowSync{graph: graph, store: store, logger: logger}, nil
}

// SyncFollows pages through everyone fid follows, upserting profiles and
// verified wallet addresses page by page, and returns the collected
// profiles. Upsert failures are logged and skipped so one bad page does not
// lose the rest of the list.
func (s *FollowSync) SyncFollows(ctx context.Context, fid uint64) ([]domain.UserProfile, error) {
	var profiles []domain.UserProfile
	cursor := ""
	for {
		page, next, err := s.graph.FollowingPage(ctx, fid, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch following page: %w", err)
		}

		users := make([]domain.UserProfile, 0, len(page))
		var wallets []domain.Wallet
		for _, profile := range page {
			users = append(users, profile.User)
			wallets = append(wallets, verifiedWallets(profile, "ethereum", profile.EthAddresses)...)
			wallets = append(wallets, verifiedWallets(profile, "solana", profile.SolAddresses)...)
		}

		if len(users) > 0 {
			if err := s.store.UpsertUsers(ctx, users); err != nil {
				s.logger.Error("user upsert failed", "count", len(users), "err", err)
			}
		}
		if len(wallets) > 0 {
			if err := s.store.UpsertWallets(ctx, wallets); err != nil {
				s.logger.Error("wallet upsert failed", "count", len(wallets), "err", err)
			}
		}
		profiles = append(profiles, users...)

		if next == "" {
			break
		}
		cursor = next
	}

	s.logger.Info("follow list synced", "fid", fid, "profiles", len(profiles))
	return profiles, nil
}

func verifiedWallets(profile domain.FollowedProfile, chain string, addresses []string) []domain.Wallet {
	wallets := make([]domain.Wallet, 0, len(addresses))
	for _, address := range addresses {
		if strings.TrimSpace(address) == "" {
			continue
		}
		wallets = append(wallets, domain.Wallet{
			Address: strings.ToLower(address),
			UserFID: profile.User.FID,
			Chain:   chain,
		})
	}
	return wallets
}
