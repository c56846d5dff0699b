package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

func setupTestRepo(t *testing.T, ttl time.Duration) *SessionRepo {
	t.Helper()
	client := setupTestClient(t)
	return NewSessionRepo(client, ttl, clockwork.NewRealClock())
}

func TestSessionRepo_CreateAndGet(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, uint64(0), fetched.Revision)
	assert.Empty(t, fetched.Items)
}

func TestSessionRepo_GetUnknown(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepo_ReplaceRoundTrip(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	price := 2.25
	created.Revision = 3
	created.Items = []domain.Item{{
		ID:            uuid.New(),
		Name:          "Beer",
		UnitPrice:     4.50,
		TotalQuantity: 10,
		Assignments:   []domain.Assignment{{ParticipantID: uuid.New(), Quantity: 2.5}},
		VerificationIssue: &domain.VerificationIssue{
			Kind:         domain.IssueUnitPriceMismatch,
			Message:      "printed unit price is 2.25",
			SuggestedFix: &domain.SuggestedFix{Price: &price},
		},
	}}
	created.Participants = []domain.Participant{{ID: uuid.New(), Name: "Alice", JoinedAt: time.Now().UTC()}}

	_, err = repo.Replace(ctx, created)
	require.NoError(t, err)

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), fetched.Revision)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, 2.5, fetched.Items[0].Assignments[0].Quantity)
	require.NotNil(t, fetched.Items[0].VerificationIssue)
	assert.Equal(t, 2.25, *fetched.Items[0].VerificationIssue.SuggestedFix.Price)
	require.Len(t, fetched.Participants, 1)
	assert.Equal(t, "Alice", fetched.Participants[0].Name)
}

func TestSessionRepo_ReplaceUnknownSession(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)

	_, err := repo.Replace(context.Background(), &domain.Session{ID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepo_ReplaceDoesNotResurrectDeleted(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.Replace(ctx, created)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepo_TTLExpiry(t *testing.T) {
	repo := setupTestRepo(t, time.Second)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := repo.Get(ctx, created.ID)
		return err != nil
	}, 3*time.Second, 100*time.Millisecond)
}

func TestSessionRepo_ReplaceRefreshesTTL(t *testing.T) {
	repo := setupTestRepo(t, 2*time.Second)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	time.Sleep(1200 * time.Millisecond)
	_, err = repo.Replace(ctx, created)
	require.NoError(t, err)

	// Well past the original deadline, inside the refreshed one.
	time.Sleep(1200 * time.Millisecond)
	_, err = repo.Get(ctx, created.ID)
	assert.NoError(t, err)
}

func TestSessionRepo_Delete(t *testing.T) {
	repo := setupTestRepo(t, time.Hour)
	ctx := context.Background()

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, repo.Delete(ctx, created.ID))
}
