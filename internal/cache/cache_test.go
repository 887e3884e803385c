package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/rpggio/focusstake/internal/repository/mocks"
	"github.com/stretchr/testify/require"
)

func receipt(sig string) *ledger.Receipt {
	return &ledger.Receipt{Signature: sig, Instruction: "fail_focus_session", Status: ledger.ReceiptSucceeded}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(time.Minute, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, receipt("a")))
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", got.Signature)

	now = now.Add(2 * time.Minute)
	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 0, m.Len())
}

func TestMemory_Bounded(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(time.Minute, 2)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, receipt("a")))
	now = now.Add(time.Second)
	require.NoError(t, m.Put(ctx, receipt("b")))
	now = now.Add(time.Second)
	require.NoError(t, m.Put(ctx, receipt("c")))

	require.Equal(t, 2, m.Len())
	got, _ := m.Get(ctx, "a")
	require.Nil(t, got)
	got, _ = m.Get(ctx, "c")
	require.NotNil(t, got)
}

func TestStatuses_FallsBackAndFills(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ReceiptRepository{}
	repo.On("Get", ctx, "sig").Return(receipt("sig"), nil).Once()
	repo.On("Get", ctx, "missing").Return(nil, repository.ErrNotFound)

	mem := NewMemory(time.Minute, 0)
	s := NewStatuses(mem, repo, nil)

	got, err := s.Lookup(ctx, "sig")
	require.NoError(t, err)
	require.Equal(t, "sig", got.Signature)

	// second lookup is served by the cache
	got, err = s.Lookup(ctx, "sig")
	require.NoError(t, err)
	require.Equal(t, "sig", got.Signature)

	_, err = s.Lookup(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestStatuses_StoreError(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ReceiptRepository{}
	repo.On("Get", ctx, "sig").Return(nil, errors.New("disk gone"))

	s := NewStatuses(NewMemory(time.Minute, 0), repo, nil)
	_, err := s.Lookup(ctx, "sig")
	require.Error(t, err)
	require.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("FOCUS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FOCUS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	c := NewRedis(client, time.Minute)
	sig := "test-" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, c.Put(ctx, receipt(sig)))
	got, err := c.Get(ctx, sig)
	require.NoError(t, err)
	require.Equal(t, sig, got.Signature)

	got, err = c.Get(ctx, sig+"-missing")
	require.NoError(t, err)
	require.Nil(t, got)
}
