package usecase

import (
	"fmt"

	"github.com/iamvkosarev/ira-companion/config"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/pkg/lang"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const systemPromptFormat = `You are Ira, a warm and affectionate companion. Follow these rules strictly:
- Reply in 5 to 10 words only.
- Keep responses incomplete (do not end with a final punctuation).
- Tone: friendly, caring, sometimes romantic when appropriate; add emoji naturally.
- Sound like a close friend and ask gentle follow-up questions when needed.
- Mirror the user's language. %s
- Avoid repeating earlier assistant replies.`

// perMessageTokenOverhead approximates the chat-format framing tokens the
// upstream adds around every message.
const perMessageTokenOverhead = 4

// PromptBuilder assembles the bounded upstream prompt. Build is deterministic:
// the same history, message and tag always produce the same prompt.
type PromptBuilder struct {
	maxContext  int
	tokenBudget int
	countTokens func(string) int
}

func NewPromptBuilder(cfg config.Chat, modelName string) *PromptBuilder {
	return &PromptBuilder{
		maxContext:  cfg.MaxContext,
		tokenBudget: cfg.TokenBudget,
		countTokens: newTokenCounter(modelName),
	}
}

// Build windows history to the trailing maxContext messages, prepends the
// system instruction for the language tag and appends the new user message.
// The window shrinks further, oldest first, until the prompt fits the token
// budget; the system instruction and the user message always survive.
func (b *PromptBuilder) Build(history []model.Message, userMessage string, tag lang.Tag) []openai.ChatCompletionMessage {
	if len(history) > b.maxContext {
		history = history[len(history)-b.maxContext:]
	}

	system := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptFormat, languageDirective(tag)),
	}
	user := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	}

	fixedTokens := b.messageTokens(system.Content) + b.messageTokens(user.Content)
	budget := b.tokenBudget - fixedTokens

	start := 0
	historyTokens := 0
	for _, msg := range history {
		historyTokens += b.messageTokens(msg.Body)
	}
	for start < len(history) && historyTokens > budget {
		historyTokens -= b.messageTokens(history[start].Body)
		start++
	}

	prompt := make([]openai.ChatCompletionMessage, 0, len(history)-start+2)
	prompt = append(prompt, system)
	for _, msg := range history[start:] {
		prompt = append(
			prompt, openai.ChatCompletionMessage{
				Role:    parseMessageSourceToRole(msg.Source),
				Content: msg.Body,
			},
		)
	}
	prompt = append(prompt, user)
	return prompt
}

func (b *PromptBuilder) messageTokens(content string) int {
	return b.countTokens(content) + perMessageTokenOverhead
}

func languageDirective(tag lang.Tag) string {
	switch tag {
	case lang.Hindi:
		return "The user's last language code: hi. Reply in Hindi (romanized is fine)."
	case lang.Mixed:
		return "The user's last language code: mixed. Reply in Hinglish, mixing romanized Hindi and English."
	default:
		return "The user's last language code: en. Reply in English."
	}
}

func parseMessageSourceToRole(source model.MessageSource) string {
	switch source {
	case model.MessageSourceUser:
		return openai.ChatMessageRoleUser
	case model.MessageSourceAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// newTokenCounter prefers the model's tiktoken encoding and falls back to a
// rough chars/4 estimate when no encoding is available (for example offline).
func newTokenCounter(modelName string) func(string) int {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return func(text string) int {
			return len(text)/4 + 1
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}
