package models

// Item is a purchasable post. Attributes is the post's free-form bag; the wallet
// only reads "price" and "isSoldOut" from it.
type Item struct {
	ID         int64          `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Attributes map[string]any `json:"attributes"`
}

const (
	AttrPrice     = "price"
	AttrIsSoldOut = "isSoldOut"
)
