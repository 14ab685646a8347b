// Package memstore defines the data model for keep's category trees:
// memory entries, subcategory entries, and the per-category index that
// caches them. The packages below it (storage, index, reindex, prune,
// content) build the persistence and maintenance machinery on these types.
package memstore
