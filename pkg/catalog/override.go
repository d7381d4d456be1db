package catalog

import (
	"sort"

	"github.com/Sternrassler/square-catalog-cache/pkg/square"
)

// PaymentLinkAttribute is the custom attribute that pins a payment URL.
const PaymentLinkAttribute = "tmp_payment_link"

// Override is an optional value attached to a catalog object.
type Override struct {
	HasOverride bool
	Value       string
}

// PaymentLinkOverride looks for a non-empty tmp_payment_link custom
// attribute on the item. Attributes are scanned in key order so the result
// is stable when several match.
func PaymentLinkOverride(item square.CatalogObject) Override {
	keys := make([]string, 0, len(item.CustomAttributeValues))
	for key := range item.CustomAttributeValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		attr := item.CustomAttributeValues[key]
		if attr.Name == PaymentLinkAttribute && attr.StringValue != "" {
			return Override{HasOverride: true, Value: attr.StringValue}
		}
	}
	return Override{}
}
