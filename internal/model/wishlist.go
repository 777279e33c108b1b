package model

import "time"

type WishlistItem struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	URL       *string   `json:"url"`
	ImageURL  *string   `json:"image_url"`
	Notes     *string   `json:"notes"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GiftClaim struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	ClaimerID int64     `json:"claimer_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// ItemWithClaim is a wishlist item row joined with its owner and optional claim.
type ItemWithClaim struct {
	WishlistItem
	OwnerName   string
	Claim       *GiftClaim
	ClaimerName string
}

// ItemUpdate carries a partial update; nil fields are left unchanged.
type ItemUpdate struct {
	Title    *string
	URL      *string
	ImageURL *string
	Notes    *string
	Priority *int
}

// ClaimStatus is the claim payload attached to a listed item. Claimer is only
// set for callers who do not own the item.
type ClaimStatus struct {
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	Claimer   *UserRef   `json:"claimer,omitempty"`
}

type WishlistItemView struct {
	WishlistItem
	Owner UserRef     `json:"owner"`
	Claim ClaimStatus `json:"claim"`
}
