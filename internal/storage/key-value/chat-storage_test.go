package key_value

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/pkg/lang"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *ChatStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewChatStorage(rdb)
}

func TestCreateChatRegistersInDirectory(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, first.ChatID, chatIDLen)
	require.Equal(t, "Chat 1", first.Title)

	second, err := s.CreateChat(ctx, "u1", "Plans")
	require.NoError(t, err)
	require.Equal(t, "Plans", second.Title)

	summaries, err := s.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, first.ChatID, summaries[0].ChatID)
	require.Equal(t, second.ChatID, summaries[1].ChatID)
}

func TestCreateChatConcurrentKeepsEveryEntry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	const workers = 50
	created := make(chan string, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chat, err := s.CreateChat(ctx, "u1", "")
			if err != nil {
				errs <- err
				return
			}
			created <- chat.ChatID
		}()
	}
	wg.Wait()
	close(created)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	summaries, err := s.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, workers)

	registered := make(map[string]struct{}, workers)
	for _, summary := range summaries {
		registered[summary.ChatID] = struct{}{}
	}
	for chatID := range created {
		require.Contains(t, registered, chatID)
		require.NoError(t, s.ChatExists(ctx, "u1", chatID))
	}
}

func TestListUserChatsEmpty(t *testing.T) {
	s := newTestStorage(t)

	summaries, err := s.ListUserChats(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestListUserChatsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	a, err := s.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	b, err := s.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestChatExists(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	require.NoError(t, s.ChatExists(ctx, "u1", chat.ChatID))
	require.ErrorIs(t, s.ChatExists(ctx, "u1", "deadbeef"), ErrChatDoesNotExist)
	// Another user's directory does not know this chat.
	require.ErrorIs(t, s.ChatExists(ctx, "u2", chat.ChatID), ErrChatDoesNotExist)
}

func TestAppendAndGetHistory(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	bodies := []string{"one", "two", "three", "four"}
	for i, body := range bodies {
		source := model.MessageSourceUser
		if i%2 == 1 {
			source = model.MessageSourceAssistant
		}
		err = s.AppendMessage(
			ctx, "u1", chat.ChatID, model.Message{
				Source: source,
				Body:   body,
				SentAt: time.Now().UTC(),
			},
		)
		require.NoError(t, err)
	}

	all, err := s.GetHistory(ctx, "u1", chat.ChatID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, msg := range all {
		require.Equal(t, bodies[i], msg.Body)
	}
	require.Equal(t, model.MessageSourceUser, all[0].Source)
	require.Equal(t, model.MessageSourceAssistant, all[1].Source)

	tail, err := s.GetHistory(ctx, "u1", chat.ChatID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, "three", tail[0].Body)
	require.Equal(t, "four", tail[1].Body)
}

func TestGetHistoryUnknownChatIsEmpty(t *testing.T) {
	s := newTestStorage(t)

	history, err := s.GetHistory(context.Background(), "u1", "nochat", 0)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestLanguageMemory(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.GetLanguage(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetLanguage(ctx, "u1", lang.Hindi))

	tag, ok, err := s.GetLanguage(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lang.Hindi, tag)

	// Last write wins.
	require.NoError(t, s.SetLanguage(ctx, "u1", lang.English))
	tag, _, err = s.GetLanguage(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, lang.English, tag)
}

func TestListUserChatsPreview(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	err = s.AppendMessage(
		ctx, "u1", chat.ChatID, model.Message{
			Source: model.MessageSourceUser,
			Body:   "Hey Ira!",
			SentAt: time.Now().UTC(),
		},
	)
	require.NoError(t, err)

	summaries, err := s.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "Hey Ira!", summaries[0].Preview)
}
