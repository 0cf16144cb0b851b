package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"ragctl/rag/types"
)

const answerPrompt = `You are a helpful assistant. Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
%s`

// OpenAIChat synthesizes answers with an OpenAI-compatible chat model.
// Retrieved context goes into the system prompt; prior conversation turns
// are passed as chat history, not re-embedded.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

func NewOpenAIChat(client *openai.Client, model string) *OpenAIChat {
	return &OpenAIChat{client: client, model: model}
}

func (c *OpenAIChat) Answer(ctx context.Context, question string, contextTexts []string, history []types.Turn) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(answerPrompt, strings.Join(contextTexts, "\n\n")),
		},
	}

	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer},
		)
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("error getting completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}

	return resp.Choices[0].Message.Content, nil
}
