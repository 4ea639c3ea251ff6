package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/clipcourier/internal/transfer"
)

// chatSink delivers engine output to one Telegram chat. It implements
// transfer.Sink and transfer.ProgressReporter.
type chatSink struct {
	bot    *Bot
	chatID int64
}

func (s *chatSink) SendDocument(ctx context.Context, path, displayName, caption string) error {
	if err := s.bot.limiter.Wait(ctx); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	_, err := s.bot.api.Send(doc)
	if retryAfter := telegramRetryAfter(err); retryAfter > 0 {
		// Honor the flood-control hint once before handing the error to the
		// engine's retry loop.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
		_, err = s.bot.api.Send(doc)
	}
	return err
}

func (s *chatSink) SendText(ctx context.Context, text string) error {
	if err := s.bot.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.bot.api.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}

func (s *chatSink) Progress(p transfer.Progress) {
	s.bot.logger.Debug("delivery progress",
		slog.Int64("chat_id", s.chatID),
		slog.Int("part", p.PartIndex),
		slog.Int("of", p.PartCount),
		slog.Int64("sent_bytes", p.SentBytes),
		slog.Int64("total_bytes", p.TotalBytes),
	)
}

func telegramRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}
