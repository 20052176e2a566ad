package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/iamvkosarev/ira-companion/config"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/pkg/lang"
	"github.com/iamvkosarev/ira-companion/pkg/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sourcegraph/conc"
)

type ChatStorage interface {
	CreateChat(ctx context.Context, userID, title string) (model.Chat, error)
	ChatExists(ctx context.Context, userID, chatID string) error
	ListUserChats(ctx context.Context, userID string) ([]model.ChatSummary, error)
	GetHistory(ctx context.Context, userID, chatID string, limit int) ([]model.Message, error)
	AppendMessage(ctx context.Context, userID, chatID string, msg model.Message) error
	GetLanguage(ctx context.Context, userID string) (lang.Tag, bool, error)
	SetLanguage(ctx context.Context, userID string, tag lang.Tag) error
	Ping(ctx context.Context) error
}

type GenerationStream interface {
	Recv() (string, error)
	Close()
}

type GenerationGateway interface {
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage) (GenerationStream, error)
}

// Delivery is the outward streaming surface. Once Send has accepted a
// request it reports the terminal outcome here, never as a bare error: the
// client always sees Done or Fail, never a silently truncated reply. A
// Fragment error means the client is gone and the generation is cancelled.
type Delivery interface {
	Fragment(text string) error
	Done(chatID, reply string)
	Fail(err error)
}

type SendRequest struct {
	UserID  string
	ChatID  string
	Message string
}

type ChatUsecaseDeps struct {
	Storage ChatStorage
	OpenAI  GenerationGateway
}

type ChatUsecase struct {
	ChatUsecaseDeps
	cfg    config.Chat
	prompt *PromptBuilder
	locks  *chatLocks
}

func NewChatUsecase(deps ChatUsecaseDeps, cfg config.Chat, prompt *PromptBuilder) *ChatUsecase {
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
		cfg:             cfg,
		prompt:          prompt,
		locks:           newChatLocks(),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Send runs one user turn: resolve or create the chat, persist the user
// message, stream the reply to delivery and persist the finished assistant
// message. Errors returned before any delivery call (validation, busy chat,
// store failures with nothing written for this turn) are safe to report as a
// plain response.
func (c *ChatUsecase) Send(ctx context.Context, req SendRequest, delivery Delivery) error {
	userID := strings.TrimSpace(req.UserID)
	message := strings.TrimSpace(req.Message)
	if userID == "" {
		return fmt.Errorf("%w: uid is required", model.ErrValidation)
	}
	if message == "" {
		return fmt.Errorf("%w: message is required", model.ErrValidation)
	}
	if len([]rune(message)) > c.cfg.MaxMessageLen {
		return fmt.Errorf("%w: message exceeds %d characters", model.ErrValidation, c.cfg.MaxMessageLen)
	}

	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		chat, err := c.Storage.CreateChat(ctx, userID, "")
		if err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		chatID = chat.ChatID
	} else if err := c.Storage.ChatExists(ctx, userID, chatID); err != nil {
		return fmt.Errorf("failed to resolve chat %s: %w", chatID, err)
	}

	release, ok := c.locks.tryAcquire(chatID)
	if !ok {
		return fmt.Errorf("%w: chat %s", model.ErrChatBusy, chatID)
	}
	defer release()

	userMsg := model.Message{
		Source: model.MessageSourceUser,
		Body:   message,
		SentAt: time.Now().UTC(),
	}
	if err := c.Storage.AppendMessage(ctx, userID, chatID, userMsg); err != nil {
		return fmt.Errorf("failed to append user message: %w", err)
	}

	// The tag is a hint, so a failed write only costs memory for next time.
	tag := lang.Classify(message)
	if err := c.Storage.SetLanguage(ctx, userID, tag); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("uid", userID).Msg("failed to remember language")
	}

	return c.generate(ctx, userID, chatID, message, tag, delivery)
}

func (c *ChatUsecase) generate(ctx context.Context, userID, chatID, message string, tag lang.Tag, delivery Delivery) error {
	history, err := c.Storage.GetHistory(ctx, userID, chatID, c.cfg.MaxContext+1)
	if err != nil {
		err = fmt.Errorf("failed to load history: %w", err)
		delivery.Fail(err)
		return err
	}
	// The turn's own user message rides separately in the prompt.
	if n := len(history); n > 0 && history[n-1].Source == model.MessageSourceUser && history[n-1].Body == message {
		history = history[:n-1]
	}
	prompt := c.prompt.Build(history, message, tag)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen, err := c.openStream(streamCtx, prompt)
	if errors.Is(err, model.ErrUpstreamTimeout) {
		// One transparent retry on the initial attempt, never after a
		// fragment has been emitted.
		gen, err = c.openStream(streamCtx, prompt)
	}
	if err != nil {
		delivery.Fail(err)
		return err
	}
	defer gen.Close()

	fragments := make(chan string)
	recvErr := make(chan error, 1)

	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			defer close(fragments)
			for {
				piece, err := gen.Recv()
				if errors.Is(err, io.EOF) {
					return
				}
				if err != nil {
					recvErr <- err
					return
				}
				if piece == "" {
					continue
				}
				select {
				case fragments <- piece:
				case <-streamCtx.Done():
					return
				}
			}
		},
	)

	var reply strings.Builder
	var streamErr error
	timer := time.NewTimer(c.cfg.StreamTimeout)
	defer timer.Stop()

relay:
	for {
		select {
		case piece, ok := <-fragments:
			if !ok {
				break relay
			}
			if err := delivery.Fragment(piece); err != nil {
				streamErr = fmt.Errorf("delivery channel closed: %w", err)
				cancel()
				break relay
			}
			reply.WriteString(piece)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.cfg.StreamTimeout)
		case <-timer.C:
			if reply.Len() > 0 {
				streamErr = fmt.Errorf("%w: no fragment within %s", model.ErrUpstreamInterrupted, c.cfg.StreamTimeout)
			} else {
				streamErr = fmt.Errorf("%w: no fragment within %s", model.ErrUpstreamTimeout, c.cfg.StreamTimeout)
			}
			cancel()
			break relay
		case <-ctx.Done():
			streamErr = ctx.Err()
			cancel()
			break relay
		}
	}
	wg.Wait()

	if streamErr == nil {
		select {
		case err := <-recvErr:
			streamErr = err
		default:
		}
	}

	if streamErr != nil {
		// Partial output is dropped: the chat keeps the user message and
		// no assistant turn.
		if ctx.Err() == nil {
			delivery.Fail(streamErr)
		}
		return streamErr
	}

	final := strings.TrimSpace(whitespaceRun.ReplaceAllString(reply.String(), " "))
	if final != "" {
		assistantMsg := model.Message{
			Source: model.MessageSourceAssistant,
			Body:   final,
			SentAt: time.Now().UTC(),
		}
		if err := c.Storage.AppendMessage(ctx, userID, chatID, assistantMsg); err != nil {
			err = fmt.Errorf("failed to append assistant message: %w", err)
			delivery.Fail(err)
			return err
		}
	}

	delivery.Done(chatID, final)
	return nil
}

type openAttempt struct {
	gen GenerationStream
	err error
}

// openStream bounds one upstream connection attempt to StreamTimeout so a
// hung dial cannot hold the chat lock indefinitely. Only the attempt is
// bounded: once the stream is open the per-fragment relay timer takes over.
// A dial that outlives the bound is cancelled and abandoned.
func (c *ChatUsecase) openStream(ctx context.Context, prompt []openai.ChatCompletionMessage) (GenerationStream, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	result := make(chan openAttempt, 1)
	go func() {
		gen, err := c.OpenAI.Stream(attemptCtx, prompt)
		result <- openAttempt{gen: gen, err: err}
	}()

	timer := time.NewTimer(c.cfg.StreamTimeout)
	defer timer.Stop()

	select {
	case attempt := <-result:
		if attempt.err != nil {
			cancel()
			return nil, attempt.err
		}
		return &openedStream{GenerationStream: attempt.gen, cancel: cancel}, nil
	case <-timer.C:
		cancel()
		go func() {
			if attempt := <-result; attempt.gen != nil {
				attempt.gen.Close()
			}
		}()
		return nil, fmt.Errorf("%w: no connection within %s", model.ErrUpstreamTimeout, c.cfg.StreamTimeout)
	}
}

// openedStream ties the attempt context to the stream's lifetime: the
// upstream request stays cancellable for exactly as long as the stream is
// open.
type openedStream struct {
	GenerationStream
	cancel context.CancelFunc
}

func (s *openedStream) Close() {
	s.GenerationStream.Close()
	s.cancel()
}

// NewChat creates an empty chat and registers it in the user's directory.
func (c *ChatUsecase) NewChat(ctx context.Context, userID, title string) (model.Chat, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.Chat{}, fmt.Errorf("%w: uid is required", model.ErrValidation)
	}
	return c.Storage.CreateChat(ctx, userID, title)
}

// Language returns the tag the user last wrote in, falling back to
// classifying the given text when nothing is remembered yet (or the store
// cannot answer). User-facing text outside the generation path localizes
// with this.
func (c *ChatUsecase) Language(ctx context.Context, userID, text string) lang.Tag {
	if tag, ok, err := c.Storage.GetLanguage(ctx, strings.TrimSpace(userID)); err == nil && ok {
		return tag
	}
	return lang.Classify(text)
}

// ListChats returns the user's chats in creation order.
func (c *ChatUsecase) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: uid is required", model.ErrValidation)
	}
	return c.Storage.ListUserChats(ctx, userID)
}

// History returns the chat's full message log, oldest first.
func (c *ChatUsecase) History(ctx context.Context, userID, chatID string) ([]model.Message, error) {
	if err := c.Storage.ChatExists(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("failed to resolve chat %s: %w", chatID, err)
	}
	return c.Storage.GetHistory(ctx, userID, chatID, 0)
}

// Health reports whether the store is reachable.
func (c *ChatUsecase) Health(ctx context.Context) error {
	return c.Storage.Ping(ctx)
}
