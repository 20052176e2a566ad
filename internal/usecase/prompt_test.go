package usecase

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/pkg/lang"
	"github.com/sashabaranov/go-openai"
)

func testPromptBuilder(maxContext, tokenBudget int) *PromptBuilder {
	return &PromptBuilder{
		maxContext:  maxContext,
		tokenBudget: tokenBudget,
		countTokens: func(text string) int {
			return len(text) / 4
		},
	}
}

func makeHistory(n int) []model.Message {
	history := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		source := model.MessageSourceUser
		if i%2 == 1 {
			source = model.MessageSourceAssistant
		}
		history = append(
			history, model.Message{
				Source: source,
				Body:   fmt.Sprintf("message %d", i),
				SentAt: time.Unix(int64(i), 0),
			},
		)
	}
	return history
}

func TestBuildEmptyHistory(t *testing.T) {
	b := testPromptBuilder(20, 100000)

	prompt := b.Build(nil, "Hey Ira!", lang.English)

	if len(prompt) != 2 {
		t.Fatalf("expected system + user, got %d messages", len(prompt))
	}
	if prompt[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("first message role = %s", prompt[0].Role)
	}
	if prompt[1].Role != openai.ChatMessageRoleUser || prompt[1].Content != "Hey Ira!" {
		t.Fatalf("unexpected user message: %+v", prompt[1])
	}
}

func TestBuildWindowsHistory(t *testing.T) {
	b := testPromptBuilder(20, 100000)
	history := makeHistory(50)

	prompt := b.Build(history, "latest", lang.English)

	// system + 20 history + user
	if len(prompt) != 22 {
		t.Fatalf("expected 22 messages, got %d", len(prompt))
	}
	if prompt[1].Content != "message 30" {
		t.Fatalf("window should start at message 30, got %q", prompt[1].Content)
	}
	if prompt[20].Content != "message 49" {
		t.Fatalf("window should end at message 49, got %q", prompt[20].Content)
	}
}

func TestBuildShortHistoryKeptWhole(t *testing.T) {
	b := testPromptBuilder(20, 100000)
	history := makeHistory(6)

	prompt := b.Build(history, "latest", lang.English)

	if len(prompt) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(prompt))
	}
}

func TestBuildTokenBudgetDropsOldest(t *testing.T) {
	// Each history message costs ~maxContext tokens; leave room for two.
	b := testPromptBuilder(20, 200)
	long := strings.Repeat("x", 200) // 50 tokens + overhead
	history := []model.Message{
		{Source: model.MessageSourceUser, Body: long + "-a"},
		{Source: model.MessageSourceAssistant, Body: long + "-b"},
		{Source: model.MessageSourceUser, Body: long + "-c"},
		{Source: model.MessageSourceAssistant, Body: long + "-d"},
	}

	prompt := b.Build(history, "hi", lang.English)

	// The oldest messages go first; system and user always stay.
	if prompt[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("system message missing")
	}
	if last := prompt[len(prompt)-1]; last.Content != "hi" {
		t.Fatalf("user message missing, got %q", last.Content)
	}
	if len(prompt) >= len(history)+2 {
		t.Fatalf("expected trimming, got %d messages", len(prompt))
	}
	if len(prompt) > 2 {
		first := prompt[1].Content
		if !strings.HasSuffix(first, "-d") && !strings.HasSuffix(first, "-c") {
			t.Fatalf("kept history should be the newest, got suffix of %q", first[len(first)-2:])
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := testPromptBuilder(20, 100000)
	history := makeHistory(10)

	first := b.Build(history, "kaise ho", lang.Hindi)
	second := b.Build(history, "kaise ho", lang.Hindi)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("Build is not deterministic")
	}
}

func TestBuildLanguageDirective(t *testing.T) {
	b := testPromptBuilder(20, 100000)

	cases := map[lang.Tag]string{
		lang.English: "code: en",
		lang.Hindi:   "code: hi",
		lang.Mixed:   "code: mixed",
	}
	for tag, want := range cases {
		prompt := b.Build(nil, "hello", tag)
		if !strings.Contains(prompt[0].Content, want) {
			t.Fatalf("system prompt for %q should contain %q", tag, want)
		}
	}
}
