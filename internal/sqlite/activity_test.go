package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	base := time.Now().UTC()
	entry1 := &activity.ActivityEntry{
		Signature:    "sig-1",
		Actor:        "a1",
		ActivityType: activity.TypeSessionStarted,
		Amount:       100_000_000,
		Summary:      "Started session",
		Details:      `{"fee":1000000}`,
		CreatedAt:    base,
	}
	entry2 := &activity.ActivityEntry{
		Signature:    "sig-2",
		Actor:        "a1",
		ActivityType: activity.TypeSessionCompleted,
		Amount:       99_000_000,
		Summary:      "Completed session",
		CreatedAt:    base.Add(time.Second),
	}

	require.NoError(t, repo.Log(ctx, entry1))
	require.NoError(t, repo.Log(ctx, entry2))
	require.NotZero(t, entry1.ID)

	entries, err := repo.List(ctx, activity.ListActivityOptions{Actor: "a1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ActivityType, entries[0].ActivityType)
	require.Equal(t, entry1.ActivityType, entries[1].ActivityType)
	require.Equal(t, uint64(100_000_000), entries[1].Amount)
	require.Equal(t, "sig-1", entries[1].Signature)
	require.Equal(t, `{"fee":1000000}`, entries[1].Details)
	require.Nil(t, entries[1].Account)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sig-2", entries[0].Signature)
}

func TestActivityRepository_Filters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	account := "session-1"
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		Actor:        "a1",
		Account:      &account,
		ActivityType: activity.TypeTaskUpdated,
		Summary:      "Task 0 marked",
	}))
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		Actor:        "a2",
		ActivityType: activity.TypeAirdrop,
		Summary:      "Airdrop",
	}))

	activityType := activity.TypeTaskUpdated
	entries, err := repo.List(ctx, activity.ListActivityOptions{Account: &account, ActivityType: &activityType})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a1", entries[0].Actor)
	require.NotNil(t, entries[0].Account)
	require.Equal(t, account, *entries[0].Account)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Actor: "nobody"})
	require.NoError(t, err)
	require.Len(t, entries, 0)
}
