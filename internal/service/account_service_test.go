package service

import (
	"context"
	"testing"

	"pointledger/internal/ledger"
	"pointledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenGrantsInitPoints(t *testing.T) {
	env := newTestEnv(t, testPointConfig)
	env.open(t, "alice")

	assert.Equal(t, int64(500), env.balance(t, "alice"))
	records := env.transfersOfType(t, "alice", model.TransferTypeInit)
	require.Len(t, records, 1)
	assert.Equal(t, model.SystemAccountID, records[0].FromID)
}

func TestOpenTwice(t *testing.T) {
	env := newTestEnv(t, testPointConfig)
	env.open(t, "alice")

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: "alice"})
	assert.ErrorIs(t, err, ledger.ErrAccountExists)
	assert.Equal(t, int64(500), env.balance(t, "alice"))
}

func TestOpenRejectsSystemAccount(t *testing.T) {
	env := newTestEnv(t, testPointConfig)

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: model.SystemAccountID})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransfer)
}

func TestOpenWithInviter(t *testing.T) {
	env := newTestEnv(t, testPointConfig)
	env.open(t, "inviter")

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: "newbie", InviterID: "inviter", Invitecode: "CODE"})
	require.NoError(t, err)

	assert.Equal(t, int64(588), env.balance(t, "newbie"))
	assert.Equal(t, int64(588), env.balance(t, "inviter"))
}

func TestOpenWithUnknownInviter(t *testing.T) {
	env := newTestEnv(t, testPointConfig)

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: "newbie", InviterID: "ghost", Invitecode: "CODE"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), env.balance(t, "newbie"))
	assert.Empty(t, env.transfersOfType(t, "newbie", model.TransferTypeInviteRegister))
}

func TestOpenSelfInvite(t *testing.T) {
	env := newTestEnv(t, testPointConfig)

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: "alice", InviterID: "alice"})
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = env.points.Balance(context.Background(), "alice")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestEmotionSettings(t *testing.T) {
	env := newTestEnv(t, testPointConfig)
	ctx := context.Background()

	require.NoError(t, env.accounts.UpdateEmotions(ctx, "alice", "smile,heart,smile, ,fire"))
	got, err := env.accounts.Emotions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "smile,heart,fire", got)

	require.NoError(t, env.accounts.UpdateEmotions(ctx, "alice", ""))
	got, err = env.accounts.Emotions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenRejectsSystemInviter(t *testing.T) {
	env := newTestEnv(t, testPointConfig)

	err := env.accounts.Open(context.Background(), OpenRequest{UserID: "alice", InviterID: model.SystemAccountID})
	assert.ErrorIs(t, err, ErrSystemAccount)

	_, err = env.points.Balance(context.Background(), "alice")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
