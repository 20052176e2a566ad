package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/pkg/lang"
	"github.com/redis/go-redis/v9"
)

var (
	ErrChatDoesNotExist = errors.New("chat does not exist")
)

// chatIDLen keeps chat ids short enough for URLs, as in the original
// deployment.
const chatIDLen = 8

type messageInternal struct {
	Source model.MessageSource `json:"source"`
	Body   string              `json:"body"`
	SentAt time.Time           `json:"sent_at"`
}

type chatEntry struct {
	ChatID  string    `json:"chat_id"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// ChatStorage persists chats, their histories and per-user language memory
// in Redis. Histories and the per-user chat directory are both append-only
// lists of JSON documents, kept in creation order; RPUSH keeps concurrent
// registrations from overwriting each other.
type ChatStorage struct {
	rdb *redis.Client
}

func NewChatStorage(rdb *redis.Client) *ChatStorage {
	return &ChatStorage{
		rdb: rdb,
	}
}

func (s *ChatStorage) CreateChat(ctx context.Context, userID, title string) (model.Chat, error) {
	chatID := uuid.NewString()[:chatIDLen]

	if title == "" {
		count, err := s.rdb.LLen(ctx, getUserChatsKey(userID)).Result()
		if err != nil {
			return model.Chat{}, storeErr("failed to count user chats", err)
		}
		title = fmt.Sprintf("Chat %d", count+1)
	}

	entry := chatEntry{
		ChatID:  chatID,
		Title:   title,
		Created: time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return model.Chat{}, fmt.Errorf("failed to marshal chat entry: %w", err)
	}
	if err = s.rdb.RPush(ctx, getUserChatsKey(userID), raw).Err(); err != nil {
		return model.Chat{}, storeErr("failed to register chat", err)
	}

	chat := model.Chat{
		ChatID:   chatID,
		UserID:   userID,
		Title:    title,
		Created:  entry.Created,
		Messages: make([]model.Message, 0),
	}
	return chat, nil
}

// ChatExists reports whether the chat id belongs to the user's directory.
func (s *ChatStorage) ChatExists(ctx context.Context, userID, chatID string) error {
	entries, err := s.getUserChats(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user chats: %w", err)
	}
	for _, entry := range entries {
		if entry.ChatID == chatID {
			return nil
		}
	}
	return ErrChatDoesNotExist
}

func (s *ChatStorage) ListUserChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	entries, err := s.getUserChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user chats: %w", err)
	}
	summaries := make([]model.ChatSummary, 0, len(entries))
	for _, entry := range entries {
		preview, err := s.firstMessagePreview(ctx, userID, entry.ChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to get preview for chat %s: %w", entry.ChatID, err)
		}
		summaries = append(
			summaries, model.ChatSummary{
				ChatID:  entry.ChatID,
				Title:   entry.Title,
				Preview: preview,
				Created: entry.Created,
			},
		)
	}
	return summaries, nil
}

func (s *ChatStorage) AppendMessage(ctx context.Context, userID, chatID string, msg model.Message) error {
	msgInt := messageInternal{
		Source: msg.Source,
		Body:   msg.Body,
		SentAt: msg.SentAt,
	}
	raw, err := json.Marshal(msgInt)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err = s.rdb.RPush(ctx, getChatHistoryKey(userID, chatID), raw).Err(); err != nil {
		return storeErr("failed to append message", err)
	}
	return nil
}

// GetHistory returns messages oldest to newest. A positive limit returns only
// the trailing limit messages; zero returns the whole history.
func (s *ChatStorage) GetHistory(ctx context.Context, userID, chatID string, limit int) ([]model.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := s.rdb.LRange(ctx, getChatHistoryKey(userID, chatID), start, -1).Result()
	if err != nil {
		return nil, storeErr("failed to read history", err)
	}

	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		var msgInt messageInternal
		if err = json.Unmarshal([]byte(item), &msgInt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(
			messages, model.Message{
				Source: msgInt.Source,
				Body:   msgInt.Body,
				SentAt: msgInt.SentAt,
			},
		)
	}
	return messages, nil
}

// GetLanguage returns the remembered tag for the user; ok is false when no
// tag has been stored yet.
func (s *ChatStorage) GetLanguage(ctx context.Context, userID string) (lang.Tag, bool, error) {
	raw, err := s.rdb.Get(ctx, getUserLangKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, storeErr("failed to get language", err)
	}
	return lang.ParseTag(raw), true, nil
}

func (s *ChatStorage) SetLanguage(ctx context.Context, userID string, tag lang.Tag) error {
	if err := s.rdb.Set(ctx, getUserLangKey(userID), string(tag), 0).Err(); err != nil {
		return storeErr("failed to set language", err)
	}
	return nil
}

func (s *ChatStorage) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("failed to ping", err)
	}
	return nil
}

func (s *ChatStorage) firstMessagePreview(ctx context.Context, userID, chatID string) (string, error) {
	items, err := s.rdb.LRange(ctx, getChatHistoryKey(userID, chatID), 0, 0).Result()
	if err != nil {
		return "", storeErr("failed to read first message", err)
	}
	if len(items) == 0 {
		return "", nil
	}
	var msgInt messageInternal
	if err = json.Unmarshal([]byte(items[0]), &msgInt); err != nil {
		return "", fmt.Errorf("failed to unmarshal first message: %w", err)
	}
	const previewLen = 60
	body := []rune(msgInt.Body)
	if len(body) > previewLen {
		return string(body[:previewLen]), nil
	}
	return msgInt.Body, nil
}

func (s *ChatStorage) getUserChats(ctx context.Context, userID string) ([]chatEntry, error) {
	items, err := s.rdb.LRange(ctx, getUserChatsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, storeErr("failed to get user chats", err)
	}
	entries := make([]chatEntry, 0, len(items))
	for _, item := range items {
		var entry chatEntry
		if err = json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

func getUserChatsKey(userID string) string {
	return fmt.Sprintf("user:%s:chats", userID)
}

func getChatHistoryKey(userID, chatID string) string {
	return fmt.Sprintf("chat:%s:%s:history", userID, chatID)
}

func getUserLangKey(userID string) string {
	return fmt.Sprintf("user:%s:lang", userID)
}
