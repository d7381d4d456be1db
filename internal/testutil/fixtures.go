package testutil

import "github.com/Sternrassler/square-catalog-cache/pkg/square"

// ItemOption customizes an ITEM fixture.
type ItemOption func(*square.CatalogObject)

// VariationID returns the id NewItem gives the first variation of itemID.
func VariationID(itemID string) string {
	return itemID + "-V1"
}

// NewItem builds an ITEM with one variation priced at amount minor units.
func NewItem(id, name string, amount int64, opts ...ItemOption) square.CatalogObject {
	obj := square.CatalogObject{
		Type: square.ObjectTypeItem,
		ID:   id,
		ItemData: &square.ItemData{
			Name: name,
			Variations: []square.CatalogObject{{
				Type: square.ObjectTypeItemVariation,
				ID:   VariationID(id),
				ItemVariationData: &square.ItemVariationData{
					ItemID:     id,
					Name:       "Regular",
					PriceMoney: &square.Money{Amount: amount, Currency: "GBP"},
				},
			}},
		},
	}
	for _, opt := range opts {
		opt(&obj)
	}
	return obj
}

// WithDescription sets the item description.
func WithDescription(desc string) ItemOption {
	return func(o *square.CatalogObject) { o.ItemData.Description = desc }
}

// WithImages sets the item's image ids.
func WithImages(ids ...string) ItemOption {
	return func(o *square.CatalogObject) { o.ItemData.ImageIDs = ids }
}

// WithCategories references categories by id.
func WithCategories(ids ...string) ItemOption {
	return func(o *square.CatalogObject) {
		for _, id := range ids {
			o.ItemData.Categories = append(o.ItemData.Categories, square.CategoryRef{ID: id})
		}
	}
}

// WithLegacyCategory sets the single category_id field.
func WithLegacyCategory(id string) ItemOption {
	return func(o *square.CatalogObject) { o.ItemData.CategoryID = id }
}

// WithOverrides adds one location override per soldOut flag to the first variation.
func WithOverrides(soldOut ...bool) ItemOption {
	return func(o *square.CatalogObject) {
		data := o.ItemData.Variations[0].ItemVariationData
		for i, s := range soldOut {
			data.LocationOverrides = append(data.LocationOverrides, square.LocationOverride{
				LocationID:     "LOC" + string(rune('A'+i)),
				TrackInventory: true,
				SoldOut:        s,
			})
		}
	}
}

// WithoutVariations removes all variations.
func WithoutVariations() ItemOption {
	return func(o *square.CatalogObject) { o.ItemData.Variations = nil }
}

// Archived marks the item archived.
func Archived() ItemOption {
	return func(o *square.CatalogObject) { o.ItemData.IsArchived = true }
}

// Deleted marks the item deleted.
func Deleted() ItemOption {
	return func(o *square.CatalogObject) { o.IsDeleted = true }
}

// WithCustomAttribute attaches a string custom attribute.
func WithCustomAttribute(key, name, value string) ItemOption {
	return func(o *square.CatalogObject) {
		if o.CustomAttributeValues == nil {
			o.CustomAttributeValues = map[string]square.CustomAttributeValue{}
		}
		o.CustomAttributeValues[key] = square.CustomAttributeValue{
			Name:        name,
			Type:        "STRING",
			StringValue: value,
		}
	}
}

// NewCategory builds a CATEGORY object.
func NewCategory(id, name string) square.CatalogObject {
	return square.CatalogObject{
		Type:         square.ObjectTypeCategory,
		ID:           id,
		CategoryData: &square.CategoryData{Name: name},
	}
}

// NewImage builds an IMAGE object.
func NewImage(id, url string) square.CatalogObject {
	return square.CatalogObject{
		Type:      square.ObjectTypeImage,
		ID:        id,
		ImageData: &square.ImageData{URL: url},
	}
}
