package models

// Item is a titled object owned by exactly one user.
type Item struct {
	ID      int64  `db:"id" json:"id"`
	Title   string `db:"title" json:"title"`
	OwnerID int64  `db:"owner_id" json:"owner_id"`
}

// CreateItemRequest is the body of POST /items/new.
type CreateItemRequest struct {
	Title string `json:"title" form:"title" binding:"required,max=200"`
}

// SendItemRequest is the body of POST /send.
type SendItemRequest struct {
	ItemID   int64  `json:"item_id" form:"item_id" binding:"required"`
	Achiever string `json:"achiever" form:"achiever" binding:"required"`
}

// SendItemResponse carries the transfer link handed to the achiever.
type SendItemResponse struct {
	Link string `json:"link"`
}

// TransferOffer is the outcome of minting a transfer token.
type TransferOffer struct {
	Token      string
	OwnerID    int64
	AchieverID int64
	Item       Item
}

// MessageResponse is a user-facing confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
