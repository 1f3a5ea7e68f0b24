package bot

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to the group monitor!

I watch the configured groups for keywords and post every match to the notification chat.

Note: in groups I only see messages when privacy mode is disabled for me or I am an admin.

Use /help for the command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `/status - processed sources and watermarks
/sources - monitored groups
/keywords - configured keywords
/watermark &lt;n&gt; - progress of source n from /sources`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	stats, err := b.store.Stats(ctx)
	if err != nil {
		b.log.Error("load stats", "error", err)
		b.reply(chatID, "Failed to read statistics.")
		return
	}
	snapshot, err := b.store.GetAll(ctx)
	if err != nil {
		b.log.Error("load watermarks", "error", err)
		b.reply(chatID, "Failed to read watermarks.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatStatus(stats, snapshot, b.registry.Len()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdStatus+":0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleSources(chatID int64) {
	sources := b.registry.All()
	msg := tgbotapi.NewMessage(chatID, FormatSources(sources))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if len(sources) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for i, src := range sources {
			label := fmt.Sprintf("%d. %s", i+1, src.DisplayName)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%d", cmdWatermark, i+1)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send sources", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleKeywords(chatID int64) {
	b.reply(chatID, FormatKeywords(b.cfg.Keywords))
}

func (b *Bot) handleWatermark(ctx context.Context, chatID int64, args string) {
	sources := b.registry.All()
	n, err := ParseIndexArg(args, len(sources))
	if err != nil {
		b.reply(chatID, html.EscapeString(err.Error()))
		return
	}
	src := sources[n-1]

	wm, err := b.store.GetLast(ctx, src.URL)
	if err != nil {
		b.log.Error("load watermark", "source", src.URL, "error", err)
		b.reply(chatID, "Failed to read the watermark.")
		return
	}
	b.reply(chatID, FormatWatermark(src, wm))
}
