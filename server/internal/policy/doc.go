// Package policy provides the policy text the coverage stage reasons over:
// an embedded markdown corpus of the California personal auto policy, the
// declarations pages of the demo policies, and three retrievers.
//
//   - KeywordRetriever routes a query to one topic section (commercial use,
//     total loss, fraud, comprehensive, injury, subrogation) or the standard
//     coverage overview. It never returns nothing and never touches the
//     network.
//   - IndexRetriever ranks sections with SQLite FTS5 bm25 in an in-memory
//     database (modernc.org/sqlite, no cgo) and routes by keyword when the
//     index has no hit.
//   - EmbeddingRetriever ranks sections by cosine similarity of Gemini
//     embeddings. It calls the network on every query.
//
// FallbackText is the last-resort policy text used when retrieval yields
// nothing at all.
package policy
