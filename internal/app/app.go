package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/iamvkosarev/ira-companion/config"
	"github.com/iamvkosarev/ira-companion/internal/handler"
	key_value "github.com/iamvkosarev/ira-companion/internal/storage/key-value"
	"github.com/iamvkosarev/ira-companion/internal/usecase"
	"github.com/iamvkosarev/ira-companion/pkg/log"
	"github.com/redis/go-redis/v9"
)

func Run(ctx context.Context, cfg *config.Config) error {
	rdb := redis.NewClient(
		&redis.Options{
			Addr: cfg.Redis.Endpoint,
		},
	)

	chatStorage := key_value.NewChatStorage(rdb)
	openAIUsecase := usecase.NewOpenAIUsecase(cfg.OpenAI)
	promptBuilder := usecase.NewPromptBuilder(cfg.Chat, cfg.OpenAI.OpenAIModel)

	chatUsecase := usecase.NewChatUsecase(
		usecase.ChatUsecaseDeps{
			Storage: chatStorage,
			OpenAI:  openAIUsecase,
		}, cfg.Chat, promptBuilder,
	)

	router := handler.NewRouter(chatUsecase)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
		// No WriteTimeout: replies stream for as long as generation runs.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	log.FromCtx(ctx).Info().Str("addr", srv.Addr).Msg("ira companion listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
