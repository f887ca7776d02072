// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateRetriever fetches passages from a Weaviate class with a NearVector
// search over the query embedding.
type WeaviateRetriever struct {
	client    *weaviate.Client
	embedder  EmbeddingProvider
	className string
}

// NewWeaviateRetriever connects to Weaviate at serviceURL (scheme required)
// and returns a retriever over className.
func NewWeaviateRetriever(serviceURL, className string, embedder EmbeddingProvider) (*WeaviateRetriever, error) {
	if className == "" {
		return nil, fmt.Errorf("weaviate class name is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	parsedURL, err := url.Parse(serviceURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid weaviate service URL %q", serviceURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	slog.Info("Weaviate retriever initialized", "host", parsedURL.Host, "class", className)
	return &WeaviateRetriever{
		client:    client,
		embedder:  embedder,
		className: className,
	}, nil
}

// Retrieve embeds the query and returns up to topK similar passages.
// Failures are logged and return nil; the caller proceeds without context.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, topK int) []Passage {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Context retrieval skipped, embedding failed", "error", err)
		return nil
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is always [0,1] regardless of the class's distance metric.
	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		slog.Warn("Context retrieval skipped, weaviate query failed", "error", err)
		return nil
	}
	if len(result.Errors) > 0 {
		slog.Warn("Context retrieval skipped, weaviate returned errors", "error", result.Errors[0].Message)
		return nil
	}

	return passagesFromGraphQL(result, r.className)
}

// passageQueryResponse matches the shape of a Get query over any class; the
// class name is the dynamic key under Get.
type passageQueryResponse struct {
	Get map[string][]passageResult `json:"Get"`
}

type passageResult struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// passagesFromGraphQL extracts passages from a Get query response. Objects
// without a text field are skipped; a missing source becomes "unknown".
func passagesFromGraphQL(result *models.GraphQLResponse, className string) []Passage {
	if result == nil {
		return nil
	}
	respBytes, err := json.Marshal(result.Data)
	if err != nil {
		slog.Warn("Failed to marshal weaviate response data", "error", err)
		return nil
	}
	var parsed passageQueryResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		slog.Warn("Failed to parse weaviate response", "error", err)
		return nil
	}

	objects := parsed.Get[className]
	passages := make([]Passage, 0, len(objects))
	for _, obj := range objects {
		if obj.Text == "" {
			continue
		}
		source := obj.Source
		if source == "" {
			source = "unknown"
		}
		passages = append(passages, Passage{
			Text:   obj.Text,
			Source: source,
			Score:  obj.Additional.Certainty,
		})
	}
	return passages
}
