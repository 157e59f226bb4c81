package service

import (
	"context"
	"fmt"

	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/telegram"
)

// MessageSender delivers a formatted message.
type MessageSender interface {
	SendMessage(text string) error
}

// UnderpricedNotifier forwards ITEM_UNDERPRICED events to a chat.
type UnderpricedNotifier struct {
	sender MessageSender
	log    *logger.Logger
}

func NewUnderpricedNotifier(sender MessageSender, log *logger.Logger) *UnderpricedNotifier {
	return &UnderpricedNotifier{sender: sender, log: log}
}

// HandleItemUnderpriced is the bus handler for ITEM_UNDERPRICED.
func (n *UnderpricedNotifier) HandleItemUnderpriced(ctx context.Context, evt event.Event) error {
	payload, ok := evt.Payload.(event.ItemUnderpriced)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	if err := n.sender.SendMessage(telegram.FormatUnderpricedMessage(payload.Analysis)); err != nil {
		return fmt.Errorf("failed to send underpriced notification for listing %d: %w", payload.Analysis.ListingID, err)
	}
	n.log.Debug("Underpriced notification sent", logger.IntField("listing_id", int(payload.Analysis.ListingID)))
	return nil
}
