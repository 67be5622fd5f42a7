package game

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionMessage(t *testing.T, err error) string {
	t.Helper()
	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr), "expected an ActionError, got %v", err)
	return actionErr.Message
}

func TestRejectKeepsMessageVerbatim(t *testing.T) {
	assert.Equal(t, "100% sure", actionMessage(t, reject("100% sure")))
	assert.Equal(t, "Room is full (max 3 players)", actionMessage(t, rejectf("Room is full (max %d players)", 3)))
}

func TestCallerSuppliedMessagesAreNotFormatted(t *testing.T) {
	user := uuid.New()

	started := &models.Game{Status: models.StatusPlaying}
	assert.Equal(t, "Room %s is gone", actionMessage(t, joinRejection(started, user, "Room %s is gone")))

	g := placingGame(user)
	g.Players[0].BombsPlaced = true
	_, err := placementGrid(g, user, "Ready at 100%")
	assert.Equal(t, "Ready at 100%", actionMessage(t, err))
}
