package models

// Member is the profile the engine needs to move money for a person.
// Authentication and profile management live outside the engine.
type Member struct {
	ID    string
	Email string

	// DisplayName is used in transfer reasons.
	DisplayName string

	// RecipientCode is the gateway transfer recipient for the member's
	// verified bank account. Empty means no payout destination.
	RecipientCode string

	// WalletBalance is credited when a charge settles, in minor units.
	WalletBalance int64

	CreatedAt int64
}

// PaymentInstrument is a reusable tokenized card. No raw card data is stored.
type PaymentInstrument struct {
	ID       string
	MemberID string

	// MembershipID binds the card to one membership. Empty means the card
	// belongs to the member generally.
	MembershipID string

	AuthorizationCode string
	Brand             string
	Last4             string

	IsDefault bool
	IsActive  bool

	CreatedAt int64
}

// OwnedBy reports whether the instrument can be charged on behalf of memberID.
func (p *PaymentInstrument) OwnedBy(memberID string) bool {
	return p.IsActive && p.MemberID == memberID
}
