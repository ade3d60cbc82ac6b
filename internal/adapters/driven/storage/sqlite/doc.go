// Package sqlite provides the SQLite-backed content store.
//
// It persists content items and chunk embeddings in a single database
// file and performs hybrid ranking server-side: FTS5 supplies BM25
// lexical relevance, and a registered vec_cosine scalar function scores
// vector similarity over float32 BLOBs, so one SQL query produces the
// final ranked result set.
package sqlite
