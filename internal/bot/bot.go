// Package bot is the Telegram adapter: it long-polls for updates, drives the
// guided session flow, and hands accepted batches to the fetch and transfer
// layers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/memohai/clipcourier/internal/extract"
	"github.com/memohai/clipcourier/internal/fetch"
	"github.com/memohai/clipcourier/internal/scratch"
	"github.com/memohai/clipcourier/internal/session"
	"github.com/memohai/clipcourier/internal/transfer"
)

// maxListBytes caps an uploaded reference list.
const maxListBytes = 1 << 20

// telegramAPI is the slice of tgbotapi.BotAPI the bot uses; tests substitute
// a fake.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Fetcher resolves a reference to a local payload inside dir.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, mode fetch.DeliveryMode, dir string) (fetch.Payload, error)
}

// Deliverer sends a payload to a sink within the transport's size ceiling.
type Deliverer interface {
	Deliver(ctx context.Context, payload transfer.Payload, sink transfer.Sink) error
}

// Options configures the bot.
type Options struct {
	ScratchRoot     string
	SendsPerSecond  float64
	VideoLowHeight  int
	VideoHighHeight int
}

// Bot wires the session manager, fetcher, and transfer engine to Telegram.
type Bot struct {
	api      telegramAPI
	sessions *session.Manager
	fetcher  Fetcher
	engine   Deliverer
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
	wg       sync.WaitGroup
	http     *http.Client
}

func New(log *slog.Logger, api telegramAPI, sessions *session.Manager, fetcher Fetcher, engine Deliverer, opts Options) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if opts.SendsPerSecond <= 0 {
		opts.SendsPerSecond = 1
	}
	return &Bot{
		api:      api,
		sessions: sessions,
		fetcher:  fetcher,
		engine:   engine,
		limiter:  rate.NewLimiter(rate.Limit(opts.SendsPerSecond), 1),
		opts:     opts,
		logger:   log.With(slog.String("adapter", "telegram")),
		http:     &http.Client{},
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is handled
// on its own goroutine; per-chat ordering is enforced by the session manager
// and the sequential processing loop.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info("start")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit.
			for range updates {
			}
			b.wg.Wait()
			b.logger.Info("stop")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// handleUpdate is the outermost handler for one inbound event; panics are the
// last-resort safety net and become a generic failure message.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var chatID int64
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	default:
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic", slog.Int64("chat_id", chatID), slog.Any("panic", r))
			b.sendText(chatID, "⚠️ Something went wrong handling that. Please try again.")
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.sendText(chatID, welcomeText)
		case "help":
			b.sendText(chatID, helpText)
		default:
			b.sendText(chatID, helpText)
		}
		return
	}

	var refs []string
	switch {
	case msg.Document != nil:
		if !isReferenceList(msg.Document) {
			b.sendText(chatID, noRefsText)
			return
		}
		listRefs, err := b.extractFromDocument(ctx, msg.Document)
		if err != nil {
			b.logger.Warn("read uploaded list failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			b.sendText(chatID, "⚠️ Couldn't read that file. Please upload a plain .txt list.")
			return
		}
		refs = listRefs
	default:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			text = strings.TrimSpace(msg.Caption)
		}
		if text == "" {
			return
		}
		refs = extract.Extract(text)
	}

	if len(refs) == 0 {
		b.sendText(chatID, noRefsText)
		return
	}

	if err := b.sessions.BeginBatch(chatID, refs); err != nil {
		if errors.Is(err, session.ErrBusy) {
			b.sendText(chatID, busyText)
			return
		}
		b.logger.Warn("begin batch failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return
	}

	prompt := tgbotapi.NewMessage(chatID, modePromptText(len(refs)))
	prompt.ReplyMarkup = modeKeyboard()
	if _, err := b.api.Send(prompt); err != nil {
		b.logger.Error("send mode prompt failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", slog.Any("error", err))
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	switch cb.Data {
	case callbackAudio:
		batch, err := b.sessions.SelectAudio(chatID)
		if err != nil {
			b.sendText(chatID, staleText)
			return
		}
		b.editText(chatID, messageID, "Audio it is. Fetching…")
		b.startProcessing(ctx, chatID, batch)
	case callbackVideo:
		if err := b.sessions.SelectVideo(chatID); err != nil {
			b.sendText(chatID, staleText)
			return
		}
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			"Which quality?", qualityKeyboard(b.opts.VideoLowHeight, b.opts.VideoHighHeight))
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Warn("edit to quality prompt failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
	case callbackQualityLow, callbackQualityHigh:
		mode := fetch.ModeVideoLow
		if cb.Data == callbackQualityHigh {
			mode = fetch.ModeVideoHigh
		}
		batch, err := b.sessions.SelectQuality(chatID, mode)
		if err != nil {
			b.sendText(chatID, staleText)
			return
		}
		b.editText(chatID, messageID, fmt.Sprintf("%s video coming up. Fetching…", qualityLabel(b.opts, mode)))
		b.startProcessing(ctx, chatID, batch)
	case callbackCancel:
		if err := b.sessions.Cancel(chatID); err != nil {
			b.sendText(chatID, staleText)
			return
		}
		b.editText(chatID, messageID, cancelledText)
	default:
		b.sendText(chatID, staleText)
	}
}

func qualityLabel(opts Options, mode fetch.DeliveryMode) string {
	if mode == fetch.ModeVideoHigh {
		return fmt.Sprintf("%dp", opts.VideoHighHeight)
	}
	return fmt.Sprintf("%dp", opts.VideoLowHeight)
}

func (b *Bot) startProcessing(ctx context.Context, chatID int64, batch session.Batch) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.process(ctx, chatID, batch)
	}()
}

// process runs the accepted batch: references strictly in extraction order,
// one at a time, so status messages and part uploads stay attributable. One
// reference's failure is reported and the loop continues.
func (b *Bot) process(ctx context.Context, chatID int64, batch session.Batch) {
	defer b.sessions.Finish(chatID)

	total := len(batch.Refs)
	for i, ref := range batch.Refs {
		if total > 1 {
			b.sendText(chatID, fmt.Sprintf("⏳ (%d/%d) Fetching %s", i+1, total, ref))
		} else {
			b.sendText(chatID, fmt.Sprintf("⏳ Fetching %s", ref))
		}
		b.deliverRef(ctx, chatID, ref, batch.Mode)
	}
	b.sendText(chatID, "✅ All done.")
}

func (b *Bot) deliverRef(ctx context.Context, chatID int64, ref string, mode fetch.DeliveryMode) {
	dir, err := scratch.New(b.opts.ScratchRoot)
	if err != nil {
		b.logger.Error("create scratch dir failed", slog.Any("error", err))
		b.sendText(chatID, fmt.Sprintf("⚠️ %s: couldn't prepare storage, skipping.", ref))
		return
	}

	payload, err := b.fetcher.Fetch(ctx, ref, mode, dir)
	if err != nil {
		scratch.Remove(dir)
		b.sendText(chatID, fetchFailureText(ref, err))
		return
	}

	b.sendChatAction(chatID, tgbotapi.ChatUploadDocument)
	sink := &chatSink{bot: b, chatID: chatID}
	deliverErr := b.engine.Deliver(ctx, transfer.Payload{
		Path:      payload.Path,
		SizeBytes: payload.SizeBytes,
		Extension: payload.Extension,
	}, sink)
	if deliverErr != nil {
		b.logger.Error("delivery failed",
			slog.Int64("chat_id", chatID),
			slog.String("ref", ref),
			slog.Any("error", deliverErr),
		)
		b.sendText(chatID, fmt.Sprintf("⚠️ %s: sending failed, skipping.", ref))
	}
}

func fetchFailureText(ref string, err error) string {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		switch fetchErr.Reason {
		case fetch.ReasonNoStream:
			return fmt.Sprintf("❌ %s: no stream available in that format.", ref)
		case fetch.ReasonAuth:
			return fmt.Sprintf("❌ %s: this content needs account cookies to access.", ref)
		case fetch.ReasonEmpty, fetch.ReasonMissing:
			return fmt.Sprintf("⚠️ %s: the download produced no usable file.", ref)
		}
	}
	return fmt.Sprintf("⚠️ %s: couldn't fetch it, skipping.", ref)
}

// extractFromDocument downloads an uploaded .txt list and extracts references
// line by line.
func (b *Bot) extractFromDocument(ctx context.Context, doc *tgbotapi.Document) ([]string, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download list: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download list status: %d", resp.StatusCode)
	}
	return extract.ExtractLines(io.LimitReader(resp.Body, maxListBytes))
}

func isReferenceList(doc *tgbotapi.Document) bool {
	if doc == nil {
		return false
	}
	if strings.EqualFold(doc.MimeType, "text/plain") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".txt")
}

func (b *Bot) sendText(chatID int64, text string) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send text failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("edit message failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) sendChatAction(chatID int64, action string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		b.logger.Debug("send chat action failed", slog.Any("error", err))
	}
}
