package service

import (
	"context"
	"errors"
	"testing"

	"linkshrink/pkg/logging"
	"linkshrink/pkg/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLinkService(store *memStorage) *LinkService {
	pol := policy.New(policy.Config{
		Admins:         []string{"root"},
		PowerUsers:     []string{"power"},
		BlockedDomains: []string{"evil.example"},
	})
	return NewLinkService(store, pol, logging.NewLogger(logging.LevelError))
}

func TestCreateGeneratesKeyInBounds(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)

	key, err := svc.Create(context.Background(), &CreateLinkRequest{LongURL: "https://example.com"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(key), 4)
	assert.LessOrEqual(t, len(key), 8)

	link, err := svc.Lookup(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.LongURL)
	assert.Zero(t, link.VisitCount)
}

func TestCreateQualifiesProtocol(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)

	key, err := svc.Create(context.Background(), &CreateLinkRequest{LongURL: "example.com/page"})
	require.NoError(t, err)

	link, err := svc.Lookup(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", link.LongURL)
}

func TestCreateRejectsBlockedDomain(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)

	_, err := svc.Create(context.Background(), &CreateLinkRequest{LongURL: "https://sub.evil.example/x"})
	assert.ErrorIs(t, err, ErrForbiddenDomain)
	assert.Empty(t, store.links)
}

func TestCreateRejectsReservedCustomKey(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)

	_, err := svc.Create(context.Background(), &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("admin"),
	})
	assert.ErrorIs(t, err, ErrForbiddenName)
	assert.Empty(t, store.links)
}

func TestCreateDuplicateCustomKey(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)

	_, err := svc.Create(context.Background(), &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("mylink"),
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &CreateLinkRequest{
		LongURL:   "https://other.example",
		CustomKey: strptr("mylink"),
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Len(t, store.links, 1)
	assert.Equal(t, "https://example.com", store.links["mylink"].LongURL)
}

func TestModifyRenameRequiresPrivilege(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("oldkey"),
		OwnerID:   strptr("alice"),
	})
	require.NoError(t, err)

	// The owner may edit, but the key change is dropped for non-privileged
	// requesters.
	err = svc.Modify(ctx, "oldkey", "alice", &UpdateLinkRequest{
		LongURL: "https://example.com/new",
		NewKey:  strptr("vanity"),
	})
	require.NoError(t, err)
	assert.Contains(t, store.links, "oldkey")
	assert.NotContains(t, store.links, "vanity")
	assert.Equal(t, "https://example.com/new", store.links["oldkey"].LongURL)

	// A power user's rename goes through and carries the visit events along.
	rec := NewVisitRecorder(store, store, logging.NewLogger(logging.LevelError))
	_, err = rec.Record(ctx, "oldkey", "1.2.3.4", nil, nil)
	require.NoError(t, err)

	err = svc.Modify(ctx, "oldkey", "power", &UpdateLinkRequest{
		LongURL: "https://example.com/new",
		NewKey:  strptr("vanity"),
	})
	require.NoError(t, err)
	assert.NotContains(t, store.links, "oldkey")
	assert.Contains(t, store.links, "vanity")

	events, _ := store.ByKey(ctx, "vanity")
	assert.Len(t, events, 1)
}

func TestModifyRenameToTakenKey(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	ctx := context.Background()

	for _, key := range []string{"first", "second"} {
		_, err := svc.Create(ctx, &CreateLinkRequest{
			LongURL:   "https://example.com",
			CustomKey: strptr(key),
			OwnerID:   strptr("alice"),
		})
		require.NoError(t, err)
	}

	err := svc.Modify(ctx, "first", "root", &UpdateLinkRequest{
		LongURL: "https://example.com",
		NewKey:  strptr("second"),
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, store.links, "first")
	assert.Contains(t, store.links, "second")
}

func TestModifyNotFound(t *testing.T) {
	svc := newTestLinkService(newMemStorage())

	err := svc.Modify(context.Background(), "nope", "root", &UpdateLinkRequest{LongURL: "https://example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAuthorization(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	rec := NewVisitRecorder(store, store, logging.NewLogger(logging.LevelError))
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("mine"),
		OwnerID:   strptr("alice"),
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = rec.Record(ctx, "mine", "1.2.3.4", nil, nil)
		require.NoError(t, err)
	}

	// A stranger cannot delete, and nothing is touched.
	_, err = svc.Delete(ctx, "mine", "mallory")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Contains(t, store.links, "mine")
	n, _ := store.CountByKey(ctx, "mine")
	assert.EqualValues(t, 3, n)

	// The owner can, and the delete cascades to the events.
	res, err := svc.Delete(ctx, "mine", "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.LinksRemoved)
	assert.EqualValues(t, 3, res.EventsRemoved)
	n, _ = store.CountByKey(ctx, "mine")
	assert.Zero(t, n)
}

func TestDeleteByAdmin(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("mine"),
		OwnerID:   strptr("alice"),
	})
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "mine", "root")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.LinksRemoved)
}

func TestDeleteNotFound(t *testing.T) {
	svc := newTestLinkService(newMemStorage())

	_, err := svc.Delete(context.Background(), "missing", "root")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByOwner(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	ctx := context.Background()

	for _, key := range []string{"a1", "a2"} {
		_, err := svc.Create(ctx, &CreateLinkRequest{
			LongURL:   "https://example.com",
			CustomKey: strptr(key),
			OwnerID:   strptr("alice"),
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("b1"),
		OwnerID:   strptr("bob"),
	})
	require.NoError(t, err)

	_, err = svc.DeleteByOwner(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	res, err := svc.DeleteByOwner(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.LinksRemoved)
	assert.Contains(t, store.links, "b1")

	n, err := svc.Count(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLookupNotFound(t *testing.T) {
	svc := newTestLinkService(newMemStorage())

	_, err := svc.Lookup(context.Background(), "zzzz")
	assert.True(t, IsNotFound(err))
}

func TestIsOwnerOrAdmin(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateLinkRequest{
		LongURL:   "https://example.com",
		CustomKey: strptr("mine"),
		OwnerID:   strptr("alice"),
	})
	require.NoError(t, err)

	for _, tt := range []struct {
		key, user string
		expected  bool
	}{
		{"mine", "alice", true},
		{"mine", "root", true},
		{"mine", "mallory", false},
		{"ghost", "root", true},
		{"ghost", "alice", false},
	} {
		ok, err := svc.IsOwnerOrAdmin(ctx, tt.key, tt.user)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, ok, "key=%s user=%s", tt.key, tt.user)
	}
}

type stubChecker struct {
	risky bool
	err   error
}

func (c stubChecker) IsRisky(context.Context, string) (bool, error) { return c.risky, c.err }

func TestCreateRiskCheckFailsOpen(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store).WithRiskChecker(stubChecker{err: errors.New("upstream down")})

	_, err := svc.Create(context.Background(), &CreateLinkRequest{LongURL: "https://example.com"})
	require.NoError(t, err)
	assert.Len(t, store.links, 1)
}

func TestCreateRiskCheckBlocksFlaggedURL(t *testing.T) {
	store := newMemStorage()
	svc := newTestLinkService(store).WithRiskChecker(stubChecker{risky: true})

	_, err := svc.Create(context.Background(), &CreateLinkRequest{LongURL: "https://example.com"})
	assert.ErrorIs(t, err, ErrForbiddenDomain)
	assert.Empty(t, store.links)
}
