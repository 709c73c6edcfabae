package domain

// UserProfile is a social-graph account attributed to classified
// transactions.
type UserProfile struct {
	FID         uint64 `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"pfp_url"`
}

// UnknownUser is the placeholder attribution for wallet addresses with no
// owning identity in the store.
func UnknownUser() UserProfile {
	return UserProfile{FID: 0, Username: "unknown", DisplayName: "Unknown"}
}

// FollowedProfile is one entry of a follow list as returned by the social
// graph provider: the profile plus its verified wallet addresses.
type FollowedProfile struct {
	User         UserProfile `json:"user"`
	Bio          string      `json:"bio,omitempty"`
	EthAddresses []string    `json:"eth_addresses,omitempty"`
	SolAddresses []string    `json:"sol_addresses,omitempty"`
}

// Wallet maps a blockchain address to its owning identity.
type Wallet struct {
	Address string `json:"address"`
	UserFID uint64 `json:"user_fid"`
	Chain   string `json:"chain"`
}
