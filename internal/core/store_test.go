package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/ragchat/internal/models"
)

// =============================================================================
// CONVERSATION STORE TESTS
// =============================================================================

func TestConversationStore_StreamingLifecycle(t *testing.T) {
	cs := NewConversationStore()

	userID := cs.Append(models.NewUserMessage("hi"))
	asstID := cs.Begin(models.Assistant)
	require.NotEqual(t, userID, asstID)

	id, ok := cs.InProgress()
	require.True(t, ok)
	assert.Equal(t, asstID, id)

	cs.UpdateLast("Hel")
	cs.UpdateLast("Hello")

	log := cs.Snapshot()
	require.Len(t, log, 2)
	assert.True(t, log.InProgress())
	assert.Equal(t, "Hello", log[1].Content)

	cs.Complete()

	log = cs.Snapshot()
	assert.False(t, log.InProgress())
	assert.Equal(t, models.User, log[0].Role)
	assert.Equal(t, models.Assistant, log[1].Role)
	assert.Equal(t, "Hello", log[1].Content)

	_, ok = cs.InProgress()
	assert.False(t, ok)
}

func TestConversationStore_BeginUsesGivenRole(t *testing.T) {
	store := NewConversationStore()

	id := store.Begin(models.User)
	log := store.Snapshot()
	require.Len(t, log, 1)
	assert.Equal(t, id, log[0].ID)
	assert.Equal(t, models.User, log[0].Role)
	assert.Empty(t, log[0].Content)
	assert.True(t, log[0].InProgress)
	assert.False(t, log[0].CreatedAt.IsZero())
}

func TestConversationStore_SnapshotIsACopy(t *testing.T) {
	cs := NewConversationStore()
	cs.Begin(models.Assistant)
	cs.UpdateLast("one")

	snap := cs.Snapshot()
	snap[0].Content = "tampered"

	cs.UpdateLast("one two")
	assert.Equal(t, "tampered", snap[0].Content)
	assert.Equal(t, "one two", cs.Snapshot()[0].Content)
}

func TestConversationStore_MisuseFailsFast(t *testing.T) {
	cs := NewConversationStore()

	assert.Panics(t, func() { cs.UpdateLast("x") })
	assert.Panics(t, func() { cs.Complete() })

	cs.Begin(models.Assistant)
	assert.Panics(t, func() { cs.Append(models.NewUserMessage("late")) })
	assert.Panics(t, func() { cs.Begin(models.Assistant) })
	assert.Equal(t, 1, cs.Len())
}

func TestConversationStore_FailOverwritesInProgress(t *testing.T) {
	cs := NewConversationStore()
	cs.Append(models.NewUserMessage("q"))
	id := cs.Begin(models.Assistant)
	cs.UpdateLast("partial answ")

	failedID := cs.Fail(ErrorMarker)

	assert.Equal(t, id, failedID)
	log := cs.Snapshot()
	require.Len(t, log, 2)
	assert.Equal(t, ErrorMarker, log[1].Content)
	assert.False(t, log[1].InProgress)
}

func TestConversationStore_FailAppendsWhenNothingInProgress(t *testing.T) {
	cs := NewConversationStore()
	cs.Append(models.NewUserMessage("q"))

	cs.Fail(ErrorMarker)

	log := cs.Snapshot()
	require.Len(t, log, 2)
	assert.Equal(t, models.Assistant, log[1].Role)
	assert.Equal(t, ErrorMarker, log[1].Content)
}

func TestConversationStore_ObserversSeeEveryStepInOrder(t *testing.T) {
	cs := NewConversationStore()

	var seen []models.ConversationLog
	unsubscribe := cs.Subscribe(func(log models.ConversationLog) {
		seen = append(seen, log)
	})

	cs.Append(models.NewUserMessage("q"))
	cs.Begin(models.Assistant)
	cs.UpdateLast("a")
	cs.UpdateLast("ab")
	cs.Complete()

	require.Len(t, seen, 5)
	assert.Len(t, seen[0], 1)
	assert.Len(t, seen[1], 2)
	assert.Equal(t, "", seen[1][1].Content)
	assert.Equal(t, "a", seen[2][1].Content)
	assert.Equal(t, "ab", seen[3][1].Content)
	assert.True(t, seen[3][1].InProgress)
	assert.False(t, seen[4][1].InProgress)

	unsubscribe()
	cs.Append(models.NewUserMessage("again"))
	assert.Len(t, seen, 5)
}

func TestConversationStore_ConcurrentReaders(t *testing.T) {
	cs := NewConversationStore()
	cs.Begin(models.Assistant)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log := cs.Snapshot()
				// Never a torn view: one message, content only ever grows.
				if assert.Len(t, log, 1) {
					_ = log[0].Content
				}
			}
		}()
	}

	content := ""
	for i := 0; i < 100; i++ {
		content += "x"
		cs.UpdateLast(content)
	}
	wg.Wait()
	cs.Complete()
	assert.Len(t, cs.Snapshot()[0].Content, 100)
}
