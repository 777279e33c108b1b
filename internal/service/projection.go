package service

import "github.com/dukerupert/kringle/internal/model"

// itemView builds the listing for one item as seen by viewerID. Owners get
// the redacted claim; everyone else sees who claimed it.
func itemView(it model.ItemWithClaim, viewerID int64) model.WishlistItemView {
	v := model.WishlistItemView{
		WishlistItem: it.WishlistItem,
		Owner:        model.UserRef{ID: it.OwnerID, Name: it.OwnerName},
	}
	if it.OwnerID == viewerID {
		v.Claim = redactedClaim(it.Claim)
	} else {
		v.Claim = detailedClaim(it.Claim, it.ClaimerName)
	}
	return v
}

func redactedClaim(c *model.GiftClaim) model.ClaimStatus {
	if c == nil {
		return model.ClaimStatus{}
	}
	at := c.ClaimedAt
	return model.ClaimStatus{Claimed: true, ClaimedAt: &at}
}

func detailedClaim(c *model.GiftClaim, claimerName string) model.ClaimStatus {
	if c == nil {
		return model.ClaimStatus{}
	}
	at := c.ClaimedAt
	return model.ClaimStatus{
		Claimed:   true,
		ClaimedAt: &at,
		Claimer:   &model.UserRef{ID: c.ClaimerID, Name: claimerName},
	}
}

func adminAssignmentView(d model.AssignmentDetail) model.AssignmentView {
	return model.AssignmentView{
		ID:        d.ID,
		GroupID:   d.GroupID,
		Giver:     &model.UserRef{ID: d.GiverID, Name: d.GiverName},
		Receiver:  model.UserRef{ID: d.ReceiverID, Name: d.ReceiverName},
		CreatedAt: d.CreatedAt,
	}
}

// giverAssignmentView omits the giver; the caller already knows who they are.
func giverAssignmentView(d model.AssignmentDetail) model.AssignmentView {
	return model.AssignmentView{
		ID:        d.ID,
		GroupID:   d.GroupID,
		Receiver:  model.UserRef{ID: d.ReceiverID, Name: d.ReceiverName},
		CreatedAt: d.CreatedAt,
	}
}
