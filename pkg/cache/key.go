package cache

import "strings"

// Namespace prefixes every key written by this module.
const Namespace = "catalog"

// Resource names used in cache keys.
const (
	ResourceSnapshot         = "snapshot"
	ResourceLastWrite        = "last_write"
	ResourcePaymentLink      = "payment_link"
	ResourcePaymentLinkLease = "payment_link_lease"
)

// Key identifies a value in the key-value store.
type Key struct {
	// Resource is the kind of value (e.g., "snapshot", "payment_link")
	Resource string

	// ID scopes the resource, e.g. a variation id (empty for singletons)
	ID string
}

// String generates the deterministic store key.
// Format: catalog:resource[:id]
//
// Example:
//
//	catalog:payment_link:VAR123
func (k Key) String() string {
	parts := []string{Namespace}

	if r := strings.Trim(k.Resource, ":"); r != "" {
		parts = append(parts, r)
	}
	if k.ID != "" {
		parts = append(parts, k.ID)
	}

	return strings.Join(parts, ":")
}

// SnapshotKey holds the serialized product snapshot.
func SnapshotKey() Key { return Key{Resource: ResourceSnapshot} }

// LastWriteKey holds the last-write timestamp in Unix milliseconds.
func LastWriteKey() Key { return Key{Resource: ResourceLastWrite} }

// PaymentLinkKey holds the payment URL issued for a variation.
func PaymentLinkKey(variationID string) Key {
	return Key{Resource: ResourcePaymentLink, ID: variationID}
}

// PaymentLinkLeaseKey guards payment-link creation for a variation.
func PaymentLinkLeaseKey(variationID string) Key {
	return Key{Resource: ResourcePaymentLinkLease, ID: variationID}
}
