//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
)

func TestProfileRepo_UpsertKeepsBalance(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresProfileRepo(testPool)
	id := newMember(t, 700)

	p, err := repo.FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.EqualValues(t, 700, p.Points)
	require.NotNil(t, p.Tier)
	assert.Equal(t, "Silver", p.Tier.Name)

	renamed := "Renamed"
	_, err = repo.Upsert(ctx, nil, &model.Profile{ID: id, DisplayName: &renamed, TierID: 1})
	require.NoError(t, err)

	p, err = repo.FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name())
	assert.EqualValues(t, 700, p.Points)
}

func TestProfileRepo_NotFound(t *testing.T) {
	_, err := NewPostgresProfileRepo(testPool).FindByID(context.Background(), nil, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileRepo_UpdateOnlyTouchesGivenFields(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresProfileRepo(testPool)
	id := newMember(t, 0)

	avatar := "https://cdn.example/a.png"
	p, err := repo.Update(ctx, nil, id, model.ProfileUpdate{AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Tester", p.Name())
	require.NotNil(t, p.AvatarURL)
	assert.Equal(t, avatar, *p.AvatarURL)
}

func TestLedgerRepo_WelcomeBonusUniqueness(t *testing.T) {
	ctx := context.Background()
	ledger := NewPostgresLedgerRepo(testPool)
	id := newMember(t, 0)

	bonus, err := model.NewWelcomeBonus(id, 100)
	require.NoError(t, err)
	_, err = ledger.Insert(ctx, nil, bonus)
	require.NoError(t, err)

	has, err := ledger.HasEntry(ctx, nil, id, model.WelcomeBonusReason, model.WelcomeBonusSource)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = ledger.Insert(ctx, nil, bonus)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	p, err := NewPostgresProfileRepo(testPool).FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.EqualValues(t, 100, p.Points)

	hist, err := ledger.ListByUser(ctx, id, 30)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.WelcomeBonusReason, hist[0].Reason)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	tm := NewTxManager(testPool)
	ledger := NewPostgresLedgerRepo(testPool)
	id := newMember(t, 0)

	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		e, _ := model.NewLedgerEntry(id, 50, "rolled back", model.PointsSourcePromo)
		if _, err := ledger.Insert(ctx, tx, e); err != nil {
			return err
		}
		return domain.ErrInvalidArgument
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	hist, err := ledger.ListByUser(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestProcedures_RedeemReward(t *testing.T) {
	ctx := context.Background()
	procs := NewPostgresProcedures(testPool)
	id := newMember(t, 500)
	reward := newReward(t, 300)

	code, err := procs.RedeemReward(ctx, id, reward.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	p, err := NewPostgresProfileRepo(testPool).FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.EqualValues(t, 200, p.Points)

	reds, err := NewPostgresRedemptionRepo(testPool).ListByUser(ctx, id)
	require.NoError(t, err)
	require.Len(t, reds, 1)
	assert.Equal(t, code, reds[0].QRCode)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), reds[0].ExpiresAt, time.Minute)

	_, err = procs.RedeemReward(ctx, id, reward.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)
}

func TestProcedures_MemberQR(t *testing.T) {
	ctx := context.Background()
	procs := NewPostgresProcedures(testPool)
	id := newMember(t, 1600)

	tok, err := procs.GenerateMemberQRToken(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	v, err := procs.ValidateMemberQRToken(ctx, tok)
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	require.NotNil(t, v.TierName)
	assert.Equal(t, "Gold", *v.TierName)

	v, err = procs.ValidateMemberQRToken(ctx, "bogus")
	require.NoError(t, err)
	assert.False(t, v.IsValid)
}
