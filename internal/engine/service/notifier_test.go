package service

import (
	"context"
	"errors"
	"testing"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	messages []string
	err      error
}

func (s *capturingSender) SendMessage(text string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, text)
	return nil
}

func TestUnderpricedNotifier(t *testing.T) {
	sender := &capturingSender{}
	n := NewUnderpricedNotifier(sender, logger.NewNop())

	evt, err := event.New(event.ItemUnderpriced{Analysis: dto.Analysis{
		ListingID: 3, Title: "Charizard", ListPrice: 40, Status: entity.OpportunityStatusPendingReview,
	}})
	require.NoError(t, err)

	require.NoError(t, n.HandleItemUnderpriced(context.Background(), evt))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Charizard")

	sender.err = errors.New("telegram down")
	assert.ErrorContains(t, n.HandleItemUnderpriced(context.Background(), evt), "listing 3")

	found, err := event.New(event.ItemFound{ListingID: 3})
	require.NoError(t, err)
	assert.Error(t, n.HandleItemUnderpriced(context.Background(), found))
}
