//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountManager_InitializeWithoutSession(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	assert.Equal(t, StatusUninitialized, f.manager.Status())

	f.manager.Initialize(context.Background())

	snap := f.manager.Snapshot()
	assert.Equal(t, StatusUnauthenticated, snap.Status)
	assert.True(t, snap.Initialized)
	assert.False(t, snap.Loading)
	assert.False(t, snap.SignedIn)
	assert.False(t, snap.ProfileLoaded)
	assert.Len(t, snap.Tiers, 3)
	assert.Equal(t, 1, f.gateway.listenerCount())
}

func TestAccountManager_InitializeIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	f.manager.Initialize(context.Background())

	assert.Equal(t, 1, f.tiers.calls)
	assert.Equal(t, 1, f.gateway.listenerCount())
}

func TestAccountManager_InitializeRestoresSession(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	u := f.signedIn("u1", 250)

	assert.Equal(t, StatusAuthenticated, f.manager.Status())
	assert.Equal(t, u.ID, f.manager.User().ID)
	require.True(t, f.manager.ProfileLoaded())
	p := f.manager.Profile()
	assert.EqualValues(t, 250, p.Points)
	require.NotNil(t, p.Tier)
	assert.Equal(t, "Bronze", p.Tier.Name)
}

func TestAccountManager_InitializeNeverFails(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.tiers.ListAllFunc = func(ctx context.Context) ([]*model.Tier, error) { return nil, errors.New("tiers down") }
	f.gateway.GetSessionFunc = func(ctx context.Context) (*model.Session, error) { return nil, errors.New("auth down") }

	f.manager.Initialize(context.Background())

	assert.True(t, f.manager.Snapshot().Initialized)
	assert.Equal(t, StatusUnauthenticated, f.manager.Status())
	assert.Nil(t, f.manager.CurrentTier())
}

func TestAccountManager_NewMemberTierProgress(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.signedIn("u1", 0)

	require.NotNil(t, f.manager.CurrentTier())
	assert.Equal(t, "Bronze", f.manager.CurrentTier().Name)
	require.NotNil(t, f.manager.NextTier())
	assert.Equal(t, "Silver", f.manager.NextTier().Name)
	assert.EqualValues(t, 500, f.manager.PointsToNextTier())
}

func TestAccountManager_TopTierMemberProgress(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.signedIn("u1", 2000)

	require.NotNil(t, f.manager.CurrentTier())
	assert.Equal(t, "Gold", f.manager.CurrentTier().Name)
	assert.Nil(t, f.manager.NextTier())
	assert.Zero(t, f.manager.PointsToNextTier())
}

func TestAccountManager_TierQueriesWithoutProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())

	assert.Nil(t, f.manager.CurrentTier())
	assert.Nil(t, f.manager.NextTier())
	assert.Zero(t, f.manager.PointsToNextTier())
}

func TestAccountManager_RefreshProfileTwiceIsStable(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.signedIn("u1", 640)
	ctx := context.Background()

	require.NoError(t, f.manager.RefreshProfile(ctx))
	first := f.manager.Snapshot()
	require.NoError(t, f.manager.RefreshProfile(ctx))
	second := f.manager.Snapshot()

	assert.Equal(t, first.Profile, second.Profile)
	assert.Equal(t, first.ProfileLoaded, second.ProfileLoaded)
}

func TestAccountManager_RefreshProfileFailureKeepsCache(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.signedIn("u1", 300)
	before := f.manager.Profile()

	f.profiles.FindByIDFunc = func(ctx context.Context, id string) (*model.Profile, error) {
		return nil, errors.New("timeout")
	}
	err := f.manager.RefreshProfile(context.Background())

	var ferr *domain.ProfileFetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "u1", ferr.UserID)
	assert.ErrorIs(t, err, domain.ErrProfileFetch)
	assert.Equal(t, before, f.manager.Profile())
}

func TestAccountManager_RefreshProfileWithoutUserIsNoop(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	require.NoError(t, f.manager.RefreshProfile(context.Background()))
	assert.Zero(t, f.profiles.reads)
	assert.Nil(t, f.manager.Profile())
}

func TestAccountManager_SignInFailure(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	f.gateway.SignInFunc = func(ctx context.Context, email, password string) (*model.Session, error) {
		return nil, errors.New("Invalid login credentials")
	}

	_, err := f.manager.SignIn(context.Background(), "a@b.c", "wrong")

	var aerr *domain.AuthenticationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Invalid login credentials", aerr.Message)
	assert.False(t, f.manager.SignedIn())
	assert.Equal(t, StatusUnauthenticated, f.manager.Status())
	require.Error(t, f.manager.LastError())

	f.manager.ClearError()
	assert.NoError(t, f.manager.LastError())
	assert.Empty(t, f.manager.Snapshot().LastError)
}

func TestAccountManager_SignInRequiresCredentials(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	_, err := f.manager.SignIn(context.Background(), "  ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAccountManager_SignInThenProfileLoadsOnEvent(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	u := testUser("u1")
	f.seedProfile(u.ID, 900)
	f.gateway.SignInFunc = func(ctx context.Context, email, password string) (*model.Session, error) {
		return testSession(u), nil
	}

	sess, err := f.manager.SignIn(context.Background(), u.Email, "secret")
	require.NoError(t, err)
	require.NotNil(t, sess)

	// signed in, profile still pending
	assert.True(t, f.manager.SignedIn())
	assert.False(t, f.manager.ProfileLoaded())
	assert.Equal(t, StatusAuthenticated, f.manager.Status())

	f.gateway.Emit(context.Background(), model.AuthEventSignedIn, sess)

	assert.True(t, f.manager.ProfileLoaded())
	assert.EqualValues(t, 900, f.manager.Profile().Points)
	assert.Equal(t, "Silver", f.manager.CurrentTier().Name)
}

func TestAccountManager_SignInWithSynchronousEvent(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	f.gateway.EmitOnSignIn = true
	u := testUser("u1")
	f.seedProfile(u.ID, 10)
	f.gateway.SignInFunc = func(ctx context.Context, email, password string) (*model.Session, error) {
		return testSession(u), nil
	}

	_, err := f.manager.SignIn(context.Background(), u.Email, "secret")
	require.NoError(t, err)
	assert.True(t, f.manager.ProfileLoaded())
}

func TestAccountManager_TokenRefreshedReloadsProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	u := f.signedIn("u1", 100)
	f.store.mu.Lock()
	f.store.profiles[u.ID].Points = 700
	f.store.mu.Unlock()

	_, err := f.gateway.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 700, f.manager.Profile().Points)
}

func TestAccountManager_SignOutAlwaysClearsState(t *testing.T) {
	t.Parallel()

	for _, remoteErr := range []error{nil, errors.New("network unreachable")} {
		f := newAccountFixture()
		f.signedIn("u1", 100)
		require.True(t, f.manager.ProfileLoaded())
		remoteErr := remoteErr
		f.gateway.SignOutFunc = func(ctx context.Context) error { return remoteErr }

		f.manager.SignOut(context.Background())

		assert.Nil(t, f.manager.User(), "remote err: %v", remoteErr)
		assert.Nil(t, f.manager.Profile(), "remote err: %v", remoteErr)
		assert.Nil(t, f.manager.Session())
		assert.Equal(t, StatusUnauthenticated, f.manager.Status())
		assert.Equal(t, 1, f.gateway.signOuts)
	}
}

func TestAccountManager_SignedOutEventClearsProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.signedIn("u1", 100)

	f.gateway.Emit(context.Background(), model.AuthEventSignedOut, nil)

	assert.False(t, f.manager.SignedIn())
	assert.False(t, f.manager.ProfileLoaded())
	assert.Equal(t, StatusUnauthenticated, f.manager.Status())
}

func TestAccountManager_SignUpAwardsOneWelcomeBonus(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	u := &model.User{ID: "new-1", Email: "jane@example.com"}
	var gotMeta map[string]any
	f.gateway.SignUpFunc = func(ctx context.Context, email, password string, meta map[string]any) (*adapter.SignUpResult, error) {
		gotMeta = meta
		return &adapter.SignUpResult{User: u, Session: testSession(u)}, nil
	}

	got, err := f.manager.SignUp(context.Background(), u.Email, "secret", "Jane")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Jane", gotMeta["display_name"])

	entries := f.ledger.entriesFor(u.ID)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 100, entries[0].Delta)
	assert.Equal(t, "Welcome bonus", entries[0].Reason)
	assert.Equal(t, model.PointsSourceManual, entries[0].Source)

	p := f.manager.Profile()
	require.NotNil(t, p)
	assert.Equal(t, "Jane", p.Name())
	assert.Equal(t, 1, p.TierID)
	assert.Zero(t, p.Points)

	require.Equal(t, 1, f.clock.pending())
	assert.Equal(t, DefaultAccountOptions().BonusRefreshDelay, f.clock.timers[0].d)
	f.clock.FireAll()
	assert.EqualValues(t, 100, f.manager.Profile().Points)
}

func TestAccountManager_CreateUserProfileRetryDoesNotDuplicateBonus(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	u := testUser("u1")
	ctx := context.Background()

	_, err := f.manager.CreateUserProfile(ctx, u, "")
	require.NoError(t, err)
	_, err = f.manager.CreateUserProfile(ctx, u, "")
	require.NoError(t, err)

	assert.Len(t, f.ledger.entriesFor(u.ID), 1)
	assert.Equal(t, 1, f.clock.pending())
	assert.Equal(t, 2, f.tm.calls)
}

func TestAccountManager_CreateUserProfileSerializationRetry(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	u := testUser("u1")
	attempts := 0
	f.tm.WithTxFunc = func(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
		attempts++
		if err := fn(ctx, nil); err != nil {
			return err
		}
		// attempt 1 aborts with 40001; its bonus row stands in for a
		// concurrent creator that committed first
		attempts++
		return fn(ctx, nil)
	}

	_, err := f.manager.CreateUserProfile(context.Background(), u, "")
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Len(t, f.ledger.entriesFor(u.ID), 1)
	assert.Equal(t, 0, f.clock.pending(), "retry that found the bonus must not schedule a refresh")
}

func TestAccountManager_CreateUserProfileUpsertKeepsBalance(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	u := testUser("u1")
	f.seedProfile(u.ID, 1200)

	p, err := f.manager.CreateUserProfile(context.Background(), u, "Renamed")
	require.NoError(t, err)
	assert.EqualValues(t, 1200, p.Points, "upsert must not reset points")
}

func TestAccountManager_CreateUserProfileDisplayNameFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		user     *model.User
		explicit string
		want     string
	}{
		{"explicit", &model.User{ID: "a", Email: "x@y.z"}, "Explicit", "Explicit"},
		{"metadata", &model.User{ID: "b", Email: "x@y.z", Metadata: map[string]any{"display_name": "Meta"}}, "", "Meta"},
		{"email", &model.User{ID: "c", Email: "local@y.z"}, "", "local"},
		{"default", &model.User{ID: "d"}, "", "Member"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAccountFixture()
			p, err := f.manager.CreateUserProfile(context.Background(), tc.user, tc.explicit)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Name())
		})
	}
}

func TestAccountManager_CreateUserProfileFailure(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.profiles.UpsertFunc = func(ctx context.Context, p *model.Profile) (*model.Profile, error) {
		return nil, errors.New("rls violation")
	}

	p, err := f.manager.CreateUserProfile(context.Background(), testUser("u1"), "")
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Empty(t, f.ledger.entriesFor("u1"))
	assert.Zero(t, f.clock.pending())
	assert.False(t, f.manager.Snapshot().Loading)
}

func TestAccountManager_SignUpAwaitingConfirmation(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	u := testUser("pending")
	f.gateway.SignUpFunc = func(ctx context.Context, email, password string, meta map[string]any) (*adapter.SignUpResult, error) {
		return &adapter.SignUpResult{User: u}, nil
	}

	_, err := f.manager.SignUp(context.Background(), u.Email, "secret", "")
	require.NoError(t, err)
	assert.False(t, f.manager.SignedIn())
	assert.Empty(t, f.ledger.entriesFor(u.ID))
}

func TestAccountManager_SignUpProviderError(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.gateway.SignUpFunc = func(ctx context.Context, email, password string, meta map[string]any) (*adapter.SignUpResult, error) {
		return nil, &domain.AuthenticationError{Message: "User already registered"}
	}

	_, err := f.manager.SignUp(context.Background(), "a@b.c", "secret", "")
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Contains(t, f.manager.Snapshot().LastError, "User already registered")
}

func TestAccountManager_UpdateProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	name := "New Name"

	_, err := f.manager.UpdateProfile(context.Background(), model.ProfileUpdate{DisplayName: &name})
	var nerr *domain.NotAuthenticatedError
	require.ErrorAs(t, err, &nerr)

	f.signedIn("u1", 50)
	p, err := f.manager.UpdateProfile(context.Background(), model.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, p.Name())
	assert.Equal(t, name, f.manager.Profile().Name())

	_, err = f.manager.UpdateProfile(context.Background(), model.ProfileUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAccountManager_GenerateMemberQRCode(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	_, err := f.manager.GenerateMemberQRCode(context.Background())
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, f.procs.qrCalls)

	u := f.signedIn("u1", 0)
	f.procs.GenerateQRFunc = func(ctx context.Context, userID string) (string, error) {
		f.store.mu.Lock()
		tok := "MEMBER:" + userID
		f.store.profiles[userID].QRCodeData = &tok
		f.store.mu.Unlock()
		return tok, nil
	}
	readsBefore := f.profiles.reads

	tok, err := f.manager.GenerateMemberQRCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MEMBER:"+u.ID, tok)
	assert.Greater(t, f.profiles.reads, readsBefore)
	require.NotNil(t, f.manager.Profile().QRCodeData)
	assert.Equal(t, tok, *f.manager.Profile().QRCodeData)
}

func TestAccountManager_SubscribeReceivesSnapshots(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	var (
		mu    sync.Mutex
		snaps []AccountSnapshot
	)
	unsub := f.manager.Subscribe(func(s AccountSnapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	f.signedIn("u1", 10)
	mu.Lock()
	n := len(snaps)
	last := snaps[n-1]
	mu.Unlock()
	require.Greater(t, n, 0)
	assert.True(t, last.Initialized)
	assert.True(t, last.ProfileLoaded)

	unsub()
	f.manager.ClearError()
	mu.Lock()
	assert.Len(t, snaps, n)
	mu.Unlock()
}

func TestAccountManager_CloseDetaches(t *testing.T) {
	t.Parallel()

	f := newAccountFixture()
	f.manager.Initialize(context.Background())
	_, err := f.manager.CreateUserProfile(context.Background(), testUser("u1"), "")
	require.NoError(t, err)
	require.Equal(t, 1, f.clock.pending())

	f.manager.Close()

	assert.Zero(t, f.gateway.listenerCount())
	assert.True(t, f.clock.timers[0].stopped)
}
