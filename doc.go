// Package sqlcache builds a content-addressed cache of per-query context
// bundles for an sqlc project. It indexes the schema, the annotated queries
// and the generated Go code by line range, resolves what each query touches,
// and writes one self-contained bundle per query.
//
// # Pipeline
//
// Every [Engine.Build] runs the same phases over the four tracked files:
//
//  1. Hash: read each file and digest its content.
//  2. Decide: files whose digest matches the committed index are stable;
//     the rest are re-extracted.
//  3. Extract: scan changed files for entity ranges (SQL via a tokenizer,
//     Go via tree-sitter) and build their indexes.
//  4. Resolve and assemble: find each query's relations and generated code,
//     fingerprint the inputs, and reassemble only bundles whose fingerprint
//     moved.
//  5. Commit: stage a new generation directory, then swap the current
//     symlink to it.
//
// A file that fails to parse keeps its previous index, and bundles that
// depend on it keep their committed content. A failed commit leaves the
// previous generation untouched.
//
// # Usage
//
//	e, err := sqlcache.New("path/to/project", "path/to/project/.sqlcache")
//	if err != nil { ... }
//	report, err := e.Build(ctx, sqlcache.BuildOptions{})
//
//	r, err := sqlcache.Open("path/to/project/.sqlcache")
//	if err != nil { ... }
//	defer r.Close()
//	b, err := r.Bundle("GetItemInfo")
//
// # Reading
//
// [Reader] serves the committed generation: indexes, bundles, entity lookup
// by name, reverse dependencies from the SQLite catalog, and [Reader.Verify]
// to check the committed set against the live sources.
package sqlcache
