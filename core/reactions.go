package core

import (
	"context"

	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// Deleter removes messages, used to take back bot replies on request.
type Deleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// trashEmoji are the wastebasket forms clients send, with and without the
// variation selector.
var trashEmoji = map[string]bool{
	"\U0001F5D1\uFE0F": true,
	"\U0001F5D1":       true,
}

// onReactionAdd deletes a bot-authored message when a user reacts to it
// with a wastebasket.
func (m *Module) onReactionAdd(ctx context.Context, event extension.Event) error {
	r, _ := event.Data.(*extension.Reaction)
	if r == nil || m.opts.Deleter == nil {
		return nil
	}
	log := m.Logger().With(zap.String("user", r.UserID), zap.String("message", r.MessageID))
	switch {
	case r.BySelf:
		return nil
	case !r.OnOwn:
		log.Debug("skipped deletion of a message the bot did not write")
		return nil
	case !trashEmoji[r.Emoji]:
		return nil
	}

	log.Debug("user deleted a bot message")
	if err := m.opts.Deleter.DeleteMessage(ctx, r.ChannelID, r.MessageID); err != nil {
		log.Error("failed to delete message, check channel permissions", zap.Error(err))
	}
	return nil
}
