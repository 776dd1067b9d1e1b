package handlers

import (
	"context"
	"errors"
	"fmt"

	"moorelink-bot/internal/badge"
	"moorelink-bot/internal/fetcher"
	"moorelink-bot/internal/session"
	"moorelink-bot/internal/utils"
)

// runFetch is the whole pipeline for one request: cooldown, upstream fetch,
// seen-post filtering, session start, first preview. The cooldown is charged
// once per fetch, not per delivered post.
func (h *Handler) runFetch(ctx context.Context, userID int64, platform, rawAccount string) {
	account := utils.NormalizeAccount(platform, rawAccount)
	if account == "" {
		h.reply(userID, "Send a valid account handle.")
		return
	}
	if !h.Fetch.Supported(platform) {
		h.reply(userID, "Unsupported platform.")
		return
	}

	if block := h.Cooldown.CheckAndIncrement(userID); block != nil {
		h.Metrics.CooldownBlocks.WithLabelValues(block.Reason).Inc()
		h.reply(userID, block.Message())
		return
	}
	h.Metrics.FetchRequests.WithLabelValues(platform).Inc()
	h.rememberRequest(userID, platform, account)

	h.reply(userID, fmt.Sprintf("🔎 Fetching latest posts from <b>%s</b> on %s...",
		account, platformName(platform)))

	candidates, err := h.Fetch.Fetch(ctx, platform, account)
	if err != nil {
		if errors.Is(err, fetcher.ErrUnsupportedPlatform) {
			h.reply(userID, "Unsupported platform.")
			return
		}
		h.reply(userID, fmt.Sprintf("Could not fetch posts from @%s right now. Try again later.", account))
		return
	}
	if len(candidates) == 0 {
		h.reply(userID, fmt.Sprintf("No posts found for @%s.", account))
		return
	}

	force := h.Force.Enabled()
	picked := h.Ledger.SelectAndRecord(userID, platform, account, candidates, force, h.Cfg.PostLimit)
	if len(picked) == 0 {
		h.reply(userID, fmt.Sprintf("No new posts from @%s since your last check.", account))
		return
	}

	h.rememberBatch(userID, nil) // new batch, fresh AI context
	key := session.Key{UserID: userID, Platform: platform, Account: account}
	out := h.Sessions.Start(key, picked)
	h.presentPost(key, out)
}

// presentPost shows the preview of the current post with its action buttons.
func (h *Handler) presentPost(key session.Key, out session.Outcome) {
	if out.Exhausted {
		h.finishBatch(key, out)
		return
	}

	post := out.Next
	preview := post.URL
	if post.Caption != "" {
		caption := post.Caption
		if len(caption) > captionLimit {
			caption = caption[:captionLimit]
		}
		preview = fmt.Sprintf("%s\n\n%s", post.URL, caption)
	}
	preview += "\n\nMove to next post⏭️?"

	h.replyMarkup(key.UserID, preview, postKeyboard(key, out))
}

// finishBatch reports the result of an exhausted or cancelled batch and
// offers AI analysis when anything was delivered.
func (h *Handler) finishBatch(key session.Key, out session.Outcome) {
	text := fmt.Sprintf("Done: %d of %d posts sent.", out.Sent, out.Total)
	if n := len(out.Failed); n > 0 {
		text += fmt.Sprintf(" %d failed to deliver.", n)
	}
	if out.Sent > 0 {
		h.replyMarkup(key.UserID, text, aiAnalyzeMarkup(key.Platform, key.Account))
		return
	}
	h.reply(key.UserID, text)
}

// startAnalysis kicks off the background AI task over the delivered batch.
// Limited tiers pay a regular cooldown charge for it; Diamond and Admin also
// get a follow-up chat over the result.
func (h *Handler) startAnalysis(ctx context.Context, userID int64, platform, account string) {
	posts := h.recentBatch(userID)
	if len(posts) == 0 {
		h.reply(userID, "Nothing to analyze yet. Fetch and send some posts first.")
		return
	}
	if h.AI == nil {
		h.reply(userID, "AI analysis is not configured on this server.")
		return
	}

	u, _ := h.DB.GetUser(userID)
	b := badge.Resolve(u, h.Cfg.AdminIDs)
	if !b.Unrestricted() {
		if block := h.Cooldown.CheckAndIncrement(userID); block != nil {
			h.Metrics.CooldownBlocks.WithLabelValues(block.Reason).Inc()
			h.reply(userID, block.Message())
			return
		}
	}

	ok := h.Tasks.Start(ctx, userID, func(taskCtx context.Context) {
		h.reply(userID, "⏳ AI is thinking... (this may take a few seconds)")

		res, err := h.AI.AnalyzePosts(taskCtx, platform, account, posts)
		if err != nil {
			if taskCtx.Err() != nil {
				h.reply(userID, "🛑 AI analysis cancelled.")
				return
			}
			h.Log.Error("ai analysis", "user", userID, "error", err)
			h.reply(userID, "⚠️ AI analysis failed. Try again later.")
			return
		}
		h.Metrics.AIAnalyses.Inc()
		h.reply(userID, fmt.Sprintf("🤖 AI Result (model: %s):\n\n%s", res.Model, res.Text))

		if b.Unrestricted() {
			h.setState(userID, chatState{mode: awaitingAIChat, aiContext: res.Text})
			h.reply(userID, "💬 Ask follow-up questions about this analysis, or /cancel to stop.")
		}
	})
	if !ok {
		h.reply(userID, "An AI analysis is already running for you. /cancel stops it.")
	}
}

// runFollowUp answers one follow-up question in the post-analysis chat and
// keeps the chat open.
func (h *Handler) runFollowUp(ctx context.Context, userID int64, priorContext, question string) {
	ok := h.Tasks.Start(ctx, userID, func(taskCtx context.Context) {
		res, err := h.AI.FollowUp(taskCtx, priorContext, question)
		if err != nil {
			if taskCtx.Err() != nil {
				h.reply(userID, "🛑 AI analysis cancelled.")
				return
			}
			h.reply(userID, "⚠️ AI analysis failed. Try again later.")
			h.setState(userID, chatState{mode: awaitingAIChat, aiContext: priorContext})
			return
		}
		h.Metrics.AIAnalyses.Inc()
		h.reply(userID, res.Text)
		h.setState(userID, chatState{mode: awaitingAIChat, aiContext: priorContext + "\n\n" + res.Text})
	})
	if !ok {
		h.reply(userID, "An AI analysis is already running for you. /cancel stops it.")
	}
}

// runManualAnalysis feeds admin-supplied text straight to the model.
func (h *Handler) runManualAnalysis(ctx context.Context, userID int64, text string) {
	if h.AI == nil {
		h.reply(userID, "AI analysis is not configured on this server.")
		return
	}
	ok := h.Tasks.Start(ctx, userID, func(taskCtx context.Context) {
		h.reply(userID, "⏳ AI is thinking... (this may take a few seconds)")
		res, err := h.AI.Complete(taskCtx, text)
		if err != nil {
			if taskCtx.Err() != nil {
				h.reply(userID, "🛑 AI analysis cancelled.")
				return
			}
			h.reply(userID, "⚠️ AI analysis failed. Try again later.")
			return
		}
		h.Metrics.AIAnalyses.Inc()
		h.reply(userID, fmt.Sprintf("🤖 AI Result (model: %s):\n\n%s", res.Model, res.Text))
	})
	if !ok {
		h.reply(userID, "An AI analysis is already running for you. /cancel stops it.")
	}
}

// runSendAll drives the bulk delivery loop and reports the outcome.
func (h *Handler) runSendAll(ctx context.Context, key session.Key) {
	out, err := h.Sessions.SendAll(ctx, key, h)
	switch {
	case errors.Is(err, session.ErrBulkLocked):
		h.reply(key.UserID,
			"Send all is unavailable: you already sent posts individually in this batch. Continue post by post.")
	case errors.Is(err, session.ErrNoSession):
		// cancelled mid-loop; the cancel handler already reported
	case err != nil:
		h.Log.Error("send all", "user", key.UserID, "error", err)
	default:
		h.finishBatch(key, out)
	}
}
