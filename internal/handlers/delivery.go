package handlers

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"moorelink-bot/internal/models"
)

const captionLimit = 1024

var nowFunc = time.Now

// DeliverPost pushes one post into the chat, degrading gracefully: media by
// URL first, then as a document, then the bare link. Implements
// session.Deliverer.
func (h *Handler) DeliverPost(ctx context.Context, userID int64, post models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	caption := post.Caption
	if len(caption) > captionLimit {
		caption = caption[:captionLimit]
	}

	var err error
	if post.MediaURL != "" {
		err = h.sendMedia(userID, post, caption)
		if err == nil {
			h.trackDelivered(userID, post)
			return nil
		}
		h.Log.Warn("media send failed, falling back to document",
			"user", userID, "post", post.ID, "error", err)

		doc := tgbotapi.NewDocument(userID, tgbotapi.FileURL(post.MediaURL))
		doc.Caption = caption
		doc.ParseMode = tgbotapi.ModeHTML
		if sent, derr := h.Bot.Send(doc); derr == nil {
			h.scheduleExpiry(userID, sent.MessageID)
			h.trackDelivered(userID, post)
			return nil
		}
	}

	// last resort: the link itself, Telegram renders the preview
	text := post.URL
	if caption != "" {
		text = fmt.Sprintf("%s\n\n%s", post.URL, caption)
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := h.Bot.Send(msg)
	if err != nil {
		h.Metrics.DeliveryFailures.Inc()
		return fmt.Errorf("deliver post %s: %w", post.ID, err)
	}
	h.scheduleExpiry(userID, sent.MessageID)
	h.trackDelivered(userID, post)
	return nil
}

func (h *Handler) sendMedia(userID int64, post models.Post, caption string) error {
	if post.IsVideo {
		v := tgbotapi.NewVideo(userID, tgbotapi.FileURL(post.MediaURL))
		v.Caption = caption
		v.ParseMode = tgbotapi.ModeHTML
		sent, err := h.Bot.Send(v)
		if err != nil {
			return err
		}
		h.scheduleExpiry(userID, sent.MessageID)
		return nil
	}
	p := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(post.MediaURL))
	p.Caption = caption
	p.ParseMode = tgbotapi.ModeHTML
	sent, err := h.Bot.Send(p)
	if err != nil {
		return err
	}
	h.scheduleExpiry(userID, sent.MessageID)
	return nil
}

func (h *Handler) trackDelivered(userID int64, post models.Post) {
	h.Metrics.PostsDelivered.Inc()
	h.appendBatch(userID, post)
}

// scheduleExpiry queues the delivered message for removal after the TTL so
// chats do not accumulate stale media.
func (h *Handler) scheduleExpiry(chatID int64, messageID int) {
	if h.Cfg.MessageTTL <= 0 {
		return
	}
	deleteAt := nowFunc().Add(h.Cfg.MessageTTL)
	if err := h.DB.ScheduleMessageDelete(chatID, messageID, deleteAt); err != nil {
		h.Log.Warn("schedule expiry", "chat", chatID, "message", messageID, "error", err)
	}
}
