package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mhollis/marginote/backend/internal/config"
	"github.com/mhollis/marginote/backend/internal/model/book"
)

// Service answers reader questions through the configured chat model.
// It is the completion-service collaborator of the capture pipeline:
// fallible, asynchronous from the caller's point of view, and never
// load-bearing for capture itself.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

const answerSystemPrompt = "You are a knowledgeable reading companion. The reader asks questions " +
	"aloud while reading; answer concisely in two or three sentences, grounded in the book named " +
	"in the context when one is given. Context: {book}. Do not invent plot details you are unsure of."

// NewService creates the question-answering service.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(answerSystemPrompt),
		schema.UserMessage("{question}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// Answer runs the question through the model with the book as context.
func (s *Service) Answer(ctx context.Context, question string, ref *book.Ref) (string, error) {
	input := map[string]any{
		"book":     describeBook(ref),
		"question": strings.TrimSpace(question),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run answer chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("answer chain returned empty content")
	}

	log.Printf("[ai] answered question length=%d book=%s", len(text), describeBook(ref))
	return text, nil
}

func describeBook(ref *book.Ref) string {
	if ref == nil || ref.Title == "" {
		return "no specific book"
	}
	if ref.Author != "" {
		return fmt.Sprintf("%s by %s", ref.Title, ref.Author)
	}
	return ref.Title
}
