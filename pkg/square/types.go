package square

// Catalog object type discriminators.
const (
	ObjectTypeItem          = "ITEM"
	ObjectTypeItemVariation = "ITEM_VARIATION"
	ObjectTypeCategory      = "CATEGORY"
	ObjectTypeImage         = "IMAGE"
)

// CatalogObject is the polymorphic catalog record returned by Square.
// Exactly one of the *Data fields is populated, according to Type.
type CatalogObject struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	IsDeleted bool   `json:"is_deleted,omitempty"`

	CustomAttributeValues map[string]CustomAttributeValue `json:"custom_attribute_values,omitempty"`

	ItemData          *ItemData          `json:"item_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
	CategoryData      *CategoryData      `json:"category_data,omitempty"`
	ImageData         *ImageData         `json:"image_data,omitempty"`
}

// ItemData holds the ITEM payload.
type ItemData struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsArchived  bool            `json:"is_archived,omitempty"`
	ImageIDs    []string        `json:"image_ids,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Categories  []CategoryRef   `json:"categories,omitempty"`
	Variations  []CatalogObject `json:"variations,omitempty"`
}

// CategoryRef references a category from an item.
type CategoryRef struct {
	ID string `json:"id"`
}

// ItemVariationData holds the ITEM_VARIATION payload.
type ItemVariationData struct {
	ItemID            string             `json:"item_id,omitempty"`
	Name              string             `json:"name,omitempty"`
	PriceMoney        *Money             `json:"price_money,omitempty"`
	LocationOverrides []LocationOverride `json:"location_overrides,omitempty"`
}

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// LocationOverride is a per-location stock override.
type LocationOverride struct {
	LocationID     string `json:"location_id,omitempty"`
	TrackInventory bool   `json:"track_inventory,omitempty"`
	SoldOut        bool   `json:"sold_out,omitempty"`
}

// CategoryData holds the CATEGORY payload.
type CategoryData struct {
	Name string `json:"name"`
}

// ImageData holds the IMAGE payload.
type ImageData struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// CustomAttributeValue is a seller-defined attribute attached to an object.
type CustomAttributeValue struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	StringValue string `json:"string_value,omitempty"`
}

// APIError is one entry of Square's "errors" array.
type APIError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Field    string `json:"field,omitempty"`
}

// ListCatalogResponse is the catalog/list response.
type ListCatalogResponse struct {
	Objects []CatalogObject `json:"objects"`
	Cursor  string          `json:"cursor,omitempty"`
	Errors  []APIError      `json:"errors,omitempty"`
}

// BatchRetrieveRequest is the catalog/batch-retrieve request body.
type BatchRetrieveRequest struct {
	ObjectIDs             []string `json:"object_ids"`
	IncludeRelatedObjects bool     `json:"include_related_objects"`
}

// BatchRetrieveResponse is the catalog/batch-retrieve response.
type BatchRetrieveResponse struct {
	Objects        []CatalogObject `json:"objects"`
	RelatedObjects []CatalogObject `json:"related_objects"`
	Errors         []APIError      `json:"errors,omitempty"`
}

// CreatePaymentLinkRequest is the online-checkout/payment-links request body.
type CreatePaymentLinkRequest struct {
	IdempotencyKey  string          `json:"idempotency_key"`
	Order           Order           `json:"order"`
	CheckoutOptions CheckoutOptions `json:"checkout_options"`
}

// Order is the order template attached to a payment link.
type Order struct {
	LocationID string          `json:"location_id"`
	LineItems  []OrderLineItem `json:"line_items"`
}

// OrderLineItem is a single line of an order. Quantity is a decimal string.
type OrderLineItem struct {
	Name            string `json:"name,omitempty"`
	CatalogObjectID string `json:"catalog_object_id"`
	Quantity        string `json:"quantity"`
}

// CheckoutOptions configures the hosted checkout page.
type CheckoutOptions struct {
	AskForShippingAddress bool `json:"ask_for_shipping_address"`
}

// PaymentLink is a hosted checkout link.
type PaymentLink struct {
	ID      string `json:"id,omitempty"`
	Version int    `json:"version,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	URL     string `json:"url"`
}

// CreatePaymentLinkResponse is the online-checkout/payment-links response.
type CreatePaymentLinkResponse struct {
	PaymentLink *PaymentLink `json:"payment_link,omitempty"`
	Errors      []APIError   `json:"errors,omitempty"`
}
