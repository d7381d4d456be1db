// Package catalog turns the Square catalog into the product snapshot served
// to storefront clients.
//
// A Service answers requests from the cached snapshot while it is fresh and
// otherwise runs the Reconciler. The Reconciler fetches items and categories,
// joins images, computes availability, resolves one payment link per item and
// compares the serialized result byte-for-byte with the stored snapshot.
// Only a changed snapshot is rewritten and announced to the Notifier. The
// last-write timestamp is recorded after the snapshot write (or the
// unchanged decision) succeeds.
//
// Payment links are write-once per variation. The Resolver checks the store,
// collapses concurrent calls in-process and takes a short store lease before
// asking Square to create a link, so parallel reconciliations rarely create
// duplicates.
package catalog
