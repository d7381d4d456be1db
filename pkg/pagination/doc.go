// Package pagination walks cursor-paginated Square endpoints.
//
// Square list endpoints return a "cursor" field when more results exist; the
// next request repeats the call with that cursor. Pages are strictly
// sequential, so the walker fetches one page at a time and stops when the
// cursor comes back empty.
//
// Example usage:
//
//	objects, err := pagination.Walk(ctx, pagination.DefaultConfig(),
//		func(ctx context.Context, cursor string) ([]square.CatalogObject, string, error) {
//			return client.ListCatalogPage(ctx, cursor, "ITEM", "CATEGORY")
//		})
//
// A catalog that fits in one page costs exactly one request.
package pagination
