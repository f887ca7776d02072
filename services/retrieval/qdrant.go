// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantRetriever fetches passages from a Qdrant collection by embedding the
// query and running a similarity search over the gRPC API.
type QdrantRetriever struct {
	client     *qdrant.Client
	embedder   EmbeddingProvider
	collection string
}

// QdrantConfig configures a QdrantRetriever. URL accepts host, host:port, or
// a full http(s) URL; the port defaults to the gRPC port 6334 and TLS is
// inferred from the scheme.
type QdrantConfig struct {
	URL            string
	APIKey         string
	CollectionName string
}

// NewQdrantRetriever connects to Qdrant and returns a retriever over the
// configured collection.
func NewQdrantRetriever(cfg QdrantConfig, embedder EmbeddingProvider) (*QdrantRetriever, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}

	rawURL := cfg.URL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	slog.Info("Qdrant retriever initialized", "host", u.Hostname(), "port", port, "collection", cfg.CollectionName)
	return &QdrantRetriever{
		client:     client,
		embedder:   embedder,
		collection: cfg.CollectionName,
	}, nil
}

// Retrieve embeds the query and returns up to topK similar passages.
// Failures are logged and return nil; the caller proceeds without context.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, topK int) []Passage {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Context retrieval skipped, embedding failed", "error", err)
		return nil
	}

	limit := uint64(topK)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		slog.Warn("Context retrieval skipped, qdrant query failed", "error", err)
		return nil
	}

	passages := make([]Passage, 0, len(points))
	for _, point := range points {
		passage := Passage{Score: float64(point.Score)}
		for key, value := range point.Payload {
			switch key {
			case "text", "content":
				if s := value.GetStringValue(); s != "" {
					passage.Text = s
				}
			case "source":
				if s := value.GetStringValue(); s != "" {
					passage.Source = s
				}
			}
		}
		if passage.Text == "" {
			continue
		}
		if passage.Source == "" {
			passage.Source = "unknown"
		}
		passages = append(passages, passage)
	}
	return passages
}
