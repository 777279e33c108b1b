package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/kringle/internal/model"
)

type WishlistStore struct {
	db *sql.DB
}

func NewWishlistStore(db *sql.DB) *WishlistStore {
	return &WishlistStore{db: db}
}

func scanItem(s scanner) (*model.WishlistItem, error) {
	var item model.WishlistItem
	var url, imageURL, notes sql.NullString
	err := s.Scan(&item.ID, &item.GroupID, &item.OwnerID, &item.Title, &url, &imageURL, &notes,
		&item.Priority, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.URL = stringPtr(url)
	item.ImageURL = stringPtr(imageURL)
	item.Notes = stringPtr(notes)
	return &item, nil
}

func scanClaim(s scanner) (*model.GiftClaim, error) {
	var c model.GiftClaim
	err := s.Scan(&c.ID, &c.ItemID, &c.ClaimerID, &c.ClaimedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const itemCols = `id, group_id, owner_id, title, url, image_url, notes, priority, created_at, updated_at`
const claimCols = `id, item_id, claimer_id, claimed_at`

func (s *WishlistStore) CreateItem(ctx context.Context, item *model.WishlistItem) (*model.WishlistItem, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO wishlist_items (group_id, owner_id, title, url, image_url, notes, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.GroupID, item.OwnerID, item.Title, nullString(item.URL), nullString(item.ImageURL),
		nullString(item.Notes), item.Priority, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wishlist item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

func (s *WishlistStore) GetItem(ctx context.Context, id int64) (*model.WishlistItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM wishlist_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wishlist item: %w", err)
	}
	return item, nil
}

// UpdateItem applies the non-nil fields of upd. An empty string clears an
// optional text field.
func (s *WishlistStore) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.WishlistItem, error) {
	existing, err := s.GetItem(ctx, id)
	if err != nil || existing == nil {
		return existing, err
	}

	if upd.Title != nil {
		existing.Title = *upd.Title
	}
	if upd.URL != nil {
		existing.URL = clearable(*upd.URL)
	}
	if upd.ImageURL != nil {
		existing.ImageURL = clearable(*upd.ImageURL)
	}
	if upd.Notes != nil {
		existing.Notes = clearable(*upd.Notes)
	}
	if upd.Priority != nil {
		existing.Priority = *upd.Priority
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE wishlist_items
		 SET title = ?, url = ?, image_url = ?, notes = ?, priority = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Title, nullString(existing.URL), nullString(existing.ImageURL),
		nullString(existing.Notes), existing.Priority, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update wishlist item: %w", err)
	}
	return s.GetItem(ctx, id)
}

func clearable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// DeleteItem removes an item; its claim goes with it via ON DELETE CASCADE.
func (s *WishlistStore) DeleteItem(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return nil
}

// ListForGroup returns a group's items with owner and claim information,
// highest priority first and newest first within a priority.
func (s *WishlistStore) ListForGroup(ctx context.Context, groupID int64) ([]model.ItemWithClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.group_id, i.owner_id, i.title, i.url, i.image_url, i.notes, i.priority,
		        i.created_at, i.updated_at, o.name,
		        c.id, c.claimer_id, c.claimed_at, cu.name
		 FROM wishlist_items i
		 JOIN users o ON o.id = i.owner_id
		 LEFT JOIN gift_claims c ON c.item_id = i.id
		 LEFT JOIN users cu ON cu.id = c.claimer_id
		 WHERE i.group_id = ?
		 ORDER BY i.priority DESC, i.created_at DESC, i.id DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wishlist items: %w", err)
	}
	defer rows.Close()

	var items []model.ItemWithClaim
	for rows.Next() {
		var it model.ItemWithClaim
		var url, imageURL, notes, claimerName sql.NullString
		var claimID, claimerID sql.NullInt64
		var claimedAt sql.NullTime
		if err := rows.Scan(
			&it.ID, &it.GroupID, &it.OwnerID, &it.Title, &url, &imageURL, &notes, &it.Priority,
			&it.CreatedAt, &it.UpdatedAt, &it.OwnerName,
			&claimID, &claimerID, &claimedAt, &claimerName,
		); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		it.URL = stringPtr(url)
		it.ImageURL = stringPtr(imageURL)
		it.Notes = stringPtr(notes)
		if claimID.Valid {
			it.Claim = &model.GiftClaim{
				ID:        claimID.Int64,
				ItemID:    it.ID,
				ClaimerID: claimerID.Int64,
				ClaimedAt: claimedAt.Time,
			}
			it.ClaimerName = claimerName.String
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateClaim records a claim on an item. At most one claim may exist per
// item; a losing concurrent claim gets ErrDuplicate.
func (s *WishlistStore) CreateClaim(ctx context.Context, itemID, claimerID int64) (*model.GiftClaim, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO gift_claims (item_id, claimer_id, claimed_at) VALUES (?, ?, ?)
		 ON CONFLICT (item_id) DO NOTHING`,
		itemID, claimerID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	if skipped, err := affectedNone(result); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if skipped {
		return nil, ErrDuplicate
	}
	return s.GetClaim(ctx, itemID)
}

// GetClaim returns the claim on an item, or nil if it is unclaimed.
func (s *WishlistStore) GetClaim(ctx context.Context, itemID int64) (*model.GiftClaim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimCols+` FROM gift_claims WHERE item_id = ?`, itemID)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// DeleteClaim removes claimerID's claim on an item and reports whether one
// was removed.
func (s *WishlistStore) DeleteClaim(ctx context.Context, itemID, claimerID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM gift_claims WHERE item_id = ? AND claimer_id = ?`,
		itemID, claimerID,
	)
	if err != nil {
		return false, fmt.Errorf("delete claim: %w", err)
	}
	none, err := affectedNone(result)
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return !none, nil
}
