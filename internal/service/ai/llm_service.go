// Package ai is the gateway to the locally hosted language model.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
)

const (
	// NothingToSummarize is returned by Summarize for an empty conversation.
	NothingToSummarize = "There is nothing to summarize yet."
	// DefaultTitle is returned by SummarizeTitle for an empty conversation.
	DefaultTitle = "New chat"
	// FallbackTitle is used when the model returns an empty title.
	FallbackTitle = "Conversation summary"
)

const (
	summarySystemPrompt = "Your task is to write a single sentence (at most 35 words) summarizing the main topic of the given conversation. Reply with the summary only."
	titleSystemPrompt   = "Your task is to write a short, precise title (at most five words) for the given conversation. Reply with the title only."
)

// InfoSource supplies the personal-info snippets injected into system prompts.
type InfoSource interface {
	Contents(ctx context.Context) ([]string, error)
}

// Service implements prompt-in/text-out access to the model.
type Service struct {
	chatModel    model.BaseChatModel
	info         InfoSource
	historyLimit int
	log          *zap.Logger

	reply   compose.Runnable[map[string]any, *schema.Message]
	summary compose.Runnable[map[string]any, *schema.Message]
	title   compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the reply, summary and title chains over chatModel. info may be nil.
func NewService(ctx context.Context, chatModel model.BaseChatModel, info InfoSource, historyLimit int, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if historyLimit < 1 {
		historyLimit = 1
	}

	reply, err := compileChain(ctx, chatModel, prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	summary, err := compileChain(ctx, chatModel, prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage("Conversation:\n---\n{conversation}\n---\n\nSummary:"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	title, err := compileChain(ctx, chatModel, prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(titleSystemPrompt),
		schema.UserMessage("Conversation:\n---\n{conversation}\n---\n\nTitle:"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to compile title chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		info:         info,
		historyLimit: historyLimit,
		log:          logger.With(zap.String("component", "ai")),
		reply:        reply,
		summary:      summary,
		title:        title,
	}, nil
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel, template prompt.ChatTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Ask generates the persona's reply to userText given the prior conversation.
func (s *Service) Ask(ctx context.Context, p persona.Persona, userText string, prior []chat.Message) (string, error) {
	var personalInfo []string
	if s.info != nil {
		contents, err := s.info.Contents(ctx)
		if err != nil {
			s.log.Warn("personal info unavailable", zap.Error(err))
		} else {
			personalInfo = contents
		}
	}

	input := map[string]any{
		"system":  BuildSystemPrompt(p, personalInfo),
		"history": s.buildHistoryMessages(prior),
		"query":   userText,
	}

	response, err := s.reply.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run reply chain: %w", err)
	}

	answer := strings.TrimSpace(response.Content)
	s.log.Info("generated reply", zap.String("persona_id", p.ID), zap.Int("history", len(prior)), zap.Int("length", len(answer)))
	return answer, nil
}

// Summarize returns a one-sentence summary of messages.
func (s *Service) Summarize(ctx context.Context, messages []chat.Message) (string, error) {
	if len(messages) == 0 {
		return NothingToSummarize, nil
	}

	response, err := s.summary.Invoke(ctx,
		map[string]any{"conversation": formatTranscript(messages)},
		compose.WithChatModelOption(model.WithTemperature(0.3), model.WithMaxTokens(500)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to run summary chain: %w", err)
	}

	return cleanOutput(response.Content), nil
}

// SummarizeTitle returns a short title for messages.
func (s *Service) SummarizeTitle(ctx context.Context, messages []chat.Message) (string, error) {
	if len(messages) == 0 {
		return DefaultTitle, nil
	}

	response, err := s.title.Invoke(ctx,
		map[string]any{"conversation": formatTranscript(messages)},
		compose.WithChatModelOption(model.WithTemperature(0.2), model.WithMaxTokens(50)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to run title chain: %w", err)
	}

	title := cleanOutput(response.Content)
	if title == "" {
		return FallbackTitle, nil
	}
	return title, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
