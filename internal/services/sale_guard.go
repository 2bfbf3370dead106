package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

// SaleTerms is the typed view of the sale-related fields in an item's
// attribute bag.
type SaleTerms struct {
	Price   int64
	SoldOut bool
}

// SaleGuard enforces that an item is sold to at most one buyer. Check must be
// called on an item row locked by the current transaction, and Seal in that
// same transaction.
type SaleGuard struct{}

func NewSaleGuard() *SaleGuard { return &SaleGuard{} }

// Terms parses price and isSoldOut. A missing or non-positive price is reported
// as ErrPriceMissing; a malformed isSoldOut is treated as sold.
func (g *SaleGuard) Terms(item models.Item) (SaleTerms, error) {
	var t SaleTerms
	switch v := item.Attributes[models.AttrIsSoldOut].(type) {
	case nil:
	case bool:
		t.SoldOut = v
	default:
		t.SoldOut = true
	}

	price, ok := parsePrice(item.Attributes[models.AttrPrice])
	if !ok || price <= 0 {
		return t, ErrPriceMissing
	}
	t.Price = price
	return t, nil
}

// Check validates that buyerID may buy item right now.
func (g *SaleGuard) Check(buyerID string, item models.Item) (SaleTerms, error) {
	if buyerID == item.OwnerID {
		return SaleTerms{}, ErrSelfPurchase
	}
	terms, err := g.Terms(item)
	if terms.SoldOut {
		return terms, ErrItemSold
	}
	return terms, err
}

// Lock takes the item row lock and maps a missing row to ErrItemNotFound.
func (g *SaleGuard) Lock(ctx context.Context, r repo.Repos, itemID int64) (models.Item, error) {
	item, err := r.Items().GetForUpdate(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Item{}, ErrItemNotFound
	}
	return item, err
}

// Seal marks the item sold inside the caller's transaction.
func (g *SaleGuard) Seal(ctx context.Context, r repo.Repos, itemID int64) error {
	err := r.Items().MarkSold(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}

func parsePrice(v any) (int64, bool) {
	switch p := v.(type) {
	case int:
		return int64(p), true
	case int32:
		return int64(p), true
	case int64:
		return p, true
	case float64:
		if p != math.Trunc(p) || p > math.MaxInt64 || p < math.MinInt64 {
			return 0, false
		}
		return int64(p), true
	case json.Number:
		n, err := p.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(p, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
