// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval fetches reference passages from a vector store for
// grounding assistant answers. Retrieval is strictly best-effort: a backend
// failure degrades a request to an ungrounded answer instead of failing it.
package retrieval

import "context"

// DefaultTopK is the number of passages fetched per query.
const DefaultTopK = 3

// Passage is one retrieved reference snippet.
type Passage struct {
	Text   string
	Source string
	Score  float64
}

// Retriever fetches the topK passages most similar to the query.
//
// Implementations never return an error: retrieval failures are logged and
// surface as an empty slice, so the chat pipeline degrades gracefully rather
// than failing the request.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []Passage
}

// NoopRetriever returns no passages. Used when no vector store is configured.
type NoopRetriever struct{}

func (NoopRetriever) Retrieve(ctx context.Context, query string, topK int) []Passage {
	return nil
}
