package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPaymentURL is used for items that have nothing to pay for.
const DefaultPaymentURL = "#"

func init() {
	// Prices are JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductItem is one entry of the snapshot served to clients.
type ProductItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Available   bool            `json:"available"`
	Categories  []string        `json:"categories"`
	PaymentURL  string          `json:"payment_url"`
}

// Snapshot is the full ordered product list of one reconciliation.
type Snapshot []ProductItem

// Marshal serializes the snapshot. Empty lists encode as [] rather than null
// so identical catalogs always produce identical bytes.
func (s Snapshot) Marshal() ([]byte, error) {
	out := make([]ProductItem, len(s))
	for i, item := range s {
		if item.Images == nil {
			item.Images = []string{}
		}
		if item.Categories == nil {
			item.Categories = []string{}
		}
		out[i] = item
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// priceFromMinor converts an amount in minor currency units to decimal units.
func priceFromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
