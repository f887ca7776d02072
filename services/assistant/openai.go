// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements Engine on top of the OpenAI Assistants API.
type OpenAIEngine struct {
	client      *openai.Client
	assistantID string
}

// NewOpenAIEngine creates an engine client for the given credentials.
// Both values are required; configuration is resolved by the caller.
func NewOpenAIEngine(apiKey, assistantID string) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if assistantID == "" {
		return nil, fmt.Errorf("assistant ID is required")
	}
	slog.Info("Initializing OpenAI assistant engine", "assistant_id", assistantID)
	return &OpenAIEngine{
		client:      openai.NewClient(apiKey),
		assistantID: assistantID,
	}, nil
}

func (e *OpenAIEngine) CreateConversation(ctx context.Context) (string, error) {
	thread, err := e.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		slog.Error("Failed to create thread", "error", err)
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	slog.Info("New thread created", "thread_id", thread.ID)
	return thread.ID, nil
}

func (e *OpenAIEngine) SubmitTurn(ctx context.Context, conversationID, role, content string) error {
	_, err := e.client.CreateMessage(ctx, conversationID, openai.MessageRequest{
		Role:    role,
		Content: content,
	})
	if err != nil {
		slog.Error("Failed to submit turn", "thread_id", conversationID, "error", err)
		return fmt.Errorf("failed to submit turn: %w", err)
	}
	return nil
}

func (e *OpenAIEngine) CreateRun(ctx context.Context, conversationID string) (string, error) {
	run, err := e.client.CreateRun(ctx, conversationID, openai.RunRequest{
		AssistantID: e.assistantID,
	})
	if err != nil {
		slog.Error("Failed to create run", "thread_id", conversationID, "error", err)
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	slog.Info("Run created", "thread_id", conversationID, "run_id", run.ID)
	return run.ID, nil
}

func (e *OpenAIEngine) GetRunStatus(ctx context.Context, conversationID, runID string) (RunStatus, error) {
	run, err := e.client.RetrieveRun(ctx, conversationID, runID)
	if err != nil {
		return RunStatus{}, fmt.Errorf("failed to retrieve run: %w", err)
	}
	status := RunStatus{Status: string(run.Status)}
	if run.LastError != nil {
		status.LastError = run.LastError.Message
	}
	return status, nil
}

func (e *OpenAIEngine) ListMessages(ctx context.Context, conversationID string) ([]string, error) {
	list, err := e.client.ListMessage(ctx, conversationID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// The API returns messages most recent first; preserve that order and
	// extract the first text block of each message.
	texts := make([]string, 0, len(list.Messages))
	for _, msg := range list.Messages {
		for _, part := range msg.Content {
			if part.Text != nil {
				texts = append(texts, part.Text.Value)
				break
			}
		}
	}
	return texts, nil
}
