package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/metrics"
	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/store"
)

type NewItemInput struct {
	Title    string  `json:"title" validate:"required,max=200"`
	URL      *string `json:"url" validate:"omitempty,weburl"`
	ImageURL *string `json:"image_url" validate:"omitempty,weburl"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	Priority *int    `json:"priority"`
}

// UpdateItemInput is a partial update. Nil fields are untouched and an empty
// string clears url, image_url or notes.
type UpdateItemInput struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	URL      *string `json:"url" validate:"omitempty,weburl"`
	ImageURL *string `json:"image_url" validate:"omitempty,weburl"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	Priority *int    `json:"priority"`
}

type WishlistService struct {
	wishlist *store.WishlistStore
	access   *access.Checker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewWishlistService(wishlist *store.WishlistStore, checker *access.Checker, m *metrics.Metrics, logger *slog.Logger) *WishlistService {
	return &WishlistService{wishlist: wishlist, access: checker, metrics: m, logger: logger}
}

func (s *WishlistService) AddItem(ctx context.Context, groupID, callerID int64, in NewItemInput) (*model.WishlistItem, error) {
	if _, err := s.access.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}

	in.Title = strings.TrimSpace(in.Title)
	in.URL = trimPtr(in.URL)
	in.ImageURL = trimPtr(in.ImageURL)
	if err := check(in); err != nil {
		return nil, err
	}

	item := &model.WishlistItem{
		GroupID:  groupID,
		OwnerID:  callerID,
		Title:    in.Title,
		URL:      emptyToNil(in.URL),
		ImageURL: emptyToNil(in.ImageURL),
		Notes:    emptyToNil(in.Notes),
	}
	if in.Priority != nil {
		item.Priority = *in.Priority
	}

	created, err := s.wishlist.CreateItem(ctx, item)
	if err != nil {
		return nil, internal("create wishlist item", err)
	}
	return created, nil
}

// ownedItem loads an item and checks the caller owns it.
func (s *WishlistService) ownedItem(ctx context.Context, itemID, callerID int64) (*model.WishlistItem, error) {
	item, err := s.wishlist.GetItem(ctx, itemID)
	if err != nil {
		return nil, internal("get wishlist item", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.OwnerID != callerID {
		return nil, ErrForbidden
	}
	return item, nil
}

func (s *WishlistService) UpdateItem(ctx context.Context, itemID, callerID int64, in UpdateItemInput) (*model.WishlistItem, error) {
	if _, err := s.ownedItem(ctx, itemID, callerID); err != nil {
		return nil, err
	}

	in.Title = trimPtr(in.Title)
	in.URL = trimPtr(in.URL)
	in.ImageURL = trimPtr(in.ImageURL)
	if err := check(in); err != nil {
		return nil, err
	}

	updated, err := s.wishlist.UpdateItem(ctx, itemID, model.ItemUpdate{
		Title:    in.Title,
		URL:      in.URL,
		ImageURL: in.ImageURL,
		Notes:    in.Notes,
		Priority: in.Priority,
	})
	if err != nil {
		return nil, internal("update wishlist item", err)
	}
	if updated == nil {
		return nil, ErrItemNotFound
	}
	return updated, nil
}

func (s *WishlistService) DeleteItem(ctx context.Context, itemID, callerID int64) error {
	if _, err := s.ownedItem(ctx, itemID, callerID); err != nil {
		return err
	}
	if err := s.wishlist.DeleteItem(ctx, itemID); err != nil {
		return internal("delete wishlist item", err)
	}
	return nil
}

// ListForGroup returns every item in the group. Claim details on the
// caller's own items are redacted whatever the caller's role.
func (s *WishlistService) ListForGroup(ctx context.Context, groupID, callerID int64) ([]model.WishlistItemView, error) {
	if _, err := s.access.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}

	items, err := s.wishlist.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, internal("list wishlist items", err)
	}
	views := make([]model.WishlistItemView, len(items))
	for i, it := range items {
		views[i] = itemView(it, callerID)
	}
	return views, nil
}

// Claim reserves an item for the caller. Of several concurrent claims on the
// same item exactly one succeeds and the rest get ErrAlreadyClaimed.
func (s *WishlistService) Claim(ctx context.Context, itemID, callerID int64) (*model.GiftClaim, error) {
	item, err := s.wishlist.GetItem(ctx, itemID)
	if err != nil {
		return nil, internal("get wishlist item", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	m, err := s.access.Resolve(ctx, item.GroupID, callerID)
	if err != nil {
		return nil, internal("resolve membership", err)
	}
	if m == nil {
		return nil, ErrForbidden
	}
	if item.OwnerID == callerID {
		return nil, ErrSelfClaim
	}

	claim, err := s.wishlist.CreateClaim(ctx, itemID, callerID)
	if errors.Is(err, store.ErrDuplicate) {
		s.metrics.Claim(metrics.ClaimConflict)
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, internal("create claim", err)
	}
	s.metrics.Claim(metrics.ClaimCreated)
	s.logger.Debug("item claimed", "item_id", itemID, "user_id", callerID)
	return claim, nil
}

func (s *WishlistService) Unclaim(ctx context.Context, itemID, callerID int64) error {
	item, err := s.wishlist.GetItem(ctx, itemID)
	if err != nil {
		return internal("get wishlist item", err)
	}
	if item == nil {
		return ErrItemNotFound
	}
	claim, err := s.wishlist.GetClaim(ctx, itemID)
	if err != nil {
		return internal("get claim", err)
	}
	if claim == nil {
		return ErrClaimNotFound
	}
	if claim.ClaimerID != callerID {
		return ErrForbidden
	}

	removed, err := s.wishlist.DeleteClaim(ctx, itemID, callerID)
	if err != nil {
		return internal("delete claim", err)
	}
	if !removed {
		return ErrClaimNotFound
	}
	s.metrics.Claim(metrics.ClaimRemoved)
	return nil
}
