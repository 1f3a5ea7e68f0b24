package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg_monitor/internal/config"
	"tg_monitor/internal/model"
	"tg_monitor/internal/source"
	"tg_monitor/internal/storage"
)

// ErrNoSender is returned when a message carries no resolvable author.
var ErrNoSender = errors.New("message has no sender")

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot reads group messages, answers admin commands and delivers notifications
// to the target chat.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	registry *source.Registry
	cfg      *config.Config
	log      *slog.Logger
	username string
	targetID int64
}

// New creates a Bot with the given Telegram token, storage, registry and config.
func New(token string, store storage.Storage, registry *source.Registry, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      log,
		username: api.Self.UserName,
	}, nil
}

// Username returns the bot's own username.
func (b *Bot) Username() string {
	return b.username
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// Messages from groups and channels are pushed to events; private messages
// are treated as commands.
func (b *Bot) Run(ctx context.Context, events chan<- model.MatchEvent) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "channel_post", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				b.handleMessage(ctx, update.Message, events)
			case update.ChannelPost != nil:
				b.forward(ctx, update.ChannelPost, events)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message, events chan<- model.MatchEvent) {
	if msg.Chat == nil {
		return
	}
	if !msg.Chat.IsPrivate() {
		b.forward(ctx, msg, events)
		return
	}
	if !msg.IsCommand() || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, msg)
}

func (b *Bot) forward(ctx context.Context, msg *tgbotapi.Message, events chan<- model.MatchEvent) {
	ev, ok := EventFromMessage(msg)
	if !ok {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// EventFromMessage converts a group or channel message into a MatchEvent.
// The caption stands in for the text of media messages.
func EventFromMessage(msg *tgbotapi.Message) (model.MatchEvent, bool) {
	if msg == nil || msg.Chat == nil {
		return model.MatchEvent{}, false
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	ev := model.MatchEvent{
		Text:      text,
		Timestamp: msg.Time().UTC(),
		MessageID: int64(msg.MessageID),
		Source: model.Source{
			PlatformID:  msg.Chat.ID,
			DisplayName: chatTitle(msg.Chat),
			Handle:      msg.Chat.UserName,
		},
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.Sender = &model.Identity{
			ID:        msg.From.ID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
		}
	}
	return ev, true
}

// ResolveSource looks up the chat behind a configured group URL.
func (b *Bot) ResolveSource(ctx context.Context, rawURL string) (model.Source, error) {
	if err := ctx.Err(); err != nil {
		return model.Source{}, err
	}
	ref, err := source.ParseURL(rawURL)
	if err != nil {
		return model.Source{}, err
	}
	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: chatConfig(ref)})
	if err != nil {
		return model.Source{}, fmt.Errorf("get chat %s: %w", rawURL, err)
	}
	return model.Source{
		URL:         strings.TrimSpace(rawURL),
		PlatformID:  chat.ID,
		DisplayName: chatTitle(&chat),
		Handle:      chat.UserName,
	}, nil
}

// ResolveTarget looks up the configured notification chat and remembers its ID.
func (b *Bot) ResolveTarget(ctx context.Context) (model.Source, error) {
	src, err := b.ResolveSource(ctx, b.cfg.TargetChat)
	if err != nil {
		return model.Source{}, fmt.Errorf("resolve target chat: %w", err)
	}
	b.targetID = src.PlatformID
	return src, nil
}

// ResolveSender returns the author attached to the event.
func (b *Bot) ResolveSender(_ context.Context, ev model.MatchEvent) (*model.Identity, error) {
	if ev.Sender == nil {
		return nil, ErrNoSender
	}
	id := *ev.Sender
	return &id, nil
}

// Dispatch sends an HTML notification to the target chat.
func (b *Bot) Dispatch(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.targetID == 0 {
		return errors.New("target chat is not resolved")
	}
	msg := tgbotapi.NewMessage(b.targetID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// SendMessage sends an HTML message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdStatus:
		b.handleStatus(ctx, chatID)
	case "sources":
		b.handleSources(chatID)
	case "keywords":
		b.handleKeywords(chatID)
	case cmdWatermark:
		b.handleWatermark(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func chatConfig(ref source.Ref) tgbotapi.ChatConfig {
	if ref.Handle != "" {
		return tgbotapi.ChatConfig{SuperGroupUsername: "@" + ref.Handle}
	}
	return tgbotapi.ChatConfig{ChatID: ref.ChatID}
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name != "" {
		return name
	}
	if chat.UserName != "" {
		return "@" + chat.UserName
	}
	return fmt.Sprintf("chat %d", chat.ID)
}
