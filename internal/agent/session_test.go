package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGet(t *testing.T) {
	store := NewStore(20, nil)

	t.Run("creates lazily and reuses", func(t *testing.T) {
		a := store.Get("alpha")
		b := store.Get("alpha")
		assert.Same(t, a, b)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("empty id falls back to default", func(t *testing.T) {
		sess := store.Get("")
		assert.Equal(t, DefaultSessionID, sess.ID())
	})
}

func TestSessionTurnCap(t *testing.T) {
	store := NewStore(20, nil)
	sess := store.Get("cap")
	sess.Lock()
	defer sess.Unlock()

	for i := 0; i < 11; i++ {
		sess.Append(
			Turn{Role: RoleUser, Text: fmt.Sprintf("question %d", i)},
			Turn{Role: RoleAssistant, Text: fmt.Sprintf("answer %d", i)},
		)
	}

	turns := sess.Turns()
	require.Len(t, turns, 20, "history must stay at the cap")
	assert.Equal(t, "question 1", turns[0].Text,
		"the oldest pair is evicted first")
	assert.Equal(t, "answer 10", turns[19].Text)
}

func TestSessionSeed(t *testing.T) {
	store := NewStore(20, nil)
	sess := store.Get("seed")
	sess.Lock()
	defer sess.Unlock()

	sess.Seed([]Turn{
		{Role: RoleUser, Text: "earlier question"},
		{Role: RoleAssistant, Text: "earlier answer"},
	})
	require.Len(t, sess.Turns(), 2)

	// A second seed on a non-empty session is ignored.
	sess.Seed([]Turn{{Role: RoleUser, Text: "should not appear"}})
	assert.Len(t, sess.Turns(), 2)
}

func TestStoreClear(t *testing.T) {
	store := NewStore(20, nil)
	sess := store.Get("wipe")

	sess.Lock()
	sess.Append(Turn{Role: RoleUser, Text: "q"}, Turn{Role: RoleAssistant, Text: "a"})
	sess.CommitResult("q", "SELECT * FROM domains", &Result{
		Columns:  []string{"domain_name"},
		Rows:     []map[string]any{{"domain_name": "Oncology"}},
		RowCount: 1,
	})
	sess.SetPendingQuestion("which one?")
	sess.Unlock()

	store.Clear("wipe")
	assert.Equal(t, 0, store.Len(), "a cleared session is no longer active")

	// Clearing again, and clearing a session that never existed, are no-ops.
	store.Clear("wipe")
	store.Clear("never-seen")
	assert.Equal(t, 0, store.Len())

	// A later reference to the same id starts from scratch.
	fresh := store.Get("wipe")
	assert.NotSame(t, sess, fresh)
	fresh.Lock()
	assert.Empty(t, fresh.Turns())
	assert.Equal(t, "", fresh.PendingQuestion())
	assert.Nil(t, fresh.Memory().LastResult)
	assert.Equal(t, "", fresh.Memory().LastSQL)
	fresh.Unlock()
}

func TestContextSummaryCadence(t *testing.T) {
	store := NewStore(20, nil)
	sess := store.Get("cadence")
	sess.Lock()
	defer sess.Unlock()

	commit := func(i int) {
		q := fmt.Sprintf("question %d", i)
		sql := "SELECT * FROM domains"
		sess.Append(
			Turn{Role: RoleUser, Text: q},
			Turn{Role: RoleAssistant, Text: "here", GeneratedSQL: sql, RowCount: 1},
		)
		sess.CommitResult(q, sql, &Result{
			Columns:  []string{"domain_name"},
			Rows:     []map[string]any{{"domain_name": "Oncology"}},
			RowCount: 1,
		})
	}

	commit(1)
	assert.Empty(t, sess.Memory().ContextSummary)
	commit(2)
	assert.Empty(t, sess.Memory().ContextSummary)
	commit(3)
	assert.Contains(t, sess.Memory().ContextSummary, "question 3",
		"summary refreshes on the third committed turn")
}

func TestCommitResult(t *testing.T) {
	t.Run("overwrites memory wholesale", func(t *testing.T) {
		store := NewStore(20, nil)
		sess := store.Get("commit")
		sess.Lock()
		defer sess.Unlock()

		sess.CommitResult("show domains", "SELECT * FROM domains", &Result{
			Columns:  []string{"domain_name"},
			Rows:     []map[string]any{{"domain_name": "Oncology"}},
			RowCount: 1,
		})
		sess.CommitResult("list versions", "SELECT * FROM list_versions", &Result{
			Columns:  []string{"version_number"},
			Rows:     []map[string]any{{"version_number": 1}},
			RowCount: 1,
		})

		mem := sess.Memory()
		assert.Equal(t, "SELECT * FROM list_versions", mem.LastSQL)
		assert.Equal(t, "list_versions", mem.LastTable)
		assert.Equal(t, "list versions", mem.LastQuestion)
		require.NotNil(t, mem.LastResult)
		assert.Equal(t, []string{"version_number"}, mem.LastResult.Columns)
	})

	t.Run("caches at most fifty rows but keeps the true count", func(t *testing.T) {
		store := NewStore(20, nil)
		sess := store.Get("cache")
		sess.Lock()
		defer sess.Unlock()

		rows := make([]map[string]any, 150)
		for i := range rows {
			rows[i] = map[string]any{"hcp_name": fmt.Sprintf("Dr. %d", i)}
		}
		sess.CommitResult("show all HCPs", "SELECT * FROM view_target_list_full", &Result{
			Columns:  []string{"hcp_name"},
			Rows:     rows,
			RowCount: 150,
		})

		mem := sess.Memory()
		require.NotNil(t, mem.LastResult)
		assert.Len(t, mem.LastResult.Rows, 50)
		assert.Equal(t, 150, mem.LastResult.RowCount)
	})

	t.Run("extracts name entities from leading rows", func(t *testing.T) {
		store := NewStore(20, nil)
		sess := store.Get("entities")
		sess.Lock()
		defer sess.Unlock()

		sess.CommitResult("who is on the call list", "SELECT * FROM call_list_entries", &Result{
			Columns: []string{"hcp_name", "tier"},
			Rows: []map[string]any{
				{"hcp_name": "Dr. Nikhil Kapoor", "tier": "A"},
				{"hcp_name": "Dr. Elena Ruiz", "tier": "B"},
			},
			RowCount: 2,
		})

		mem := sess.Memory()
		assert.True(t, mem.HasEntity("Dr. Nikhil Kapoor"))
		assert.True(t, mem.HasEntity("Dr. Elena Ruiz"))
		assert.True(t, mem.HasEntity("call_list_entries"))
	})
}
