package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/targetline/targetline/internal/llm"
)

// staticGen returns the same statement for every prompt and records the
// prompts it saw.
type staticGen struct {
	reply   string
	err     error
	prompts []string
}

func (g *staticGen) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func TestSQLGeneratorGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("strips code fences and trailing semicolon", func(t *testing.T) {
		gen := &staticGen{reply: "```sql\nSELECT * FROM domains;\n```"}
		g := NewSQLGenerator(gen, 100, nil)

		sql, qt, err := g.Generate(ctx, "what is in the domains table", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM domains", sql)
		assert.Equal(t, QueryOther, qt)
	})

	t.Run("appends a limit to unbounded listings", func(t *testing.T) {
		gen := &staticGen{reply: "SELECT * FROM view_target_list_full"}
		g := NewSQLGenerator(gen, 100, nil)

		sql, qt, err := g.Generate(ctx, "Show all HCPs in the database", nil, false)
		require.NoError(t, err)
		assert.Equal(t, QueryListAll, qt)
		assert.Equal(t, "SELECT * FROM view_target_list_full LIMIT 100", sql)
	})

	t.Run("keeps an existing limit", func(t *testing.T) {
		gen := &staticGen{reply: "SELECT * FROM domains LIMIT 5"}
		g := NewSQLGenerator(gen, 100, nil)

		sql, _, err := g.Generate(ctx, "list all domains", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM domains LIMIT 5", sql)
	})

	t.Run("rejects write statements", func(t *testing.T) {
		gen := &staticGen{reply: "DROP TABLE domains"}
		g := NewSQLGenerator(gen, 100, nil)

		_, _, err := g.Generate(ctx, "drop the domains table", nil, false)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
	})

	t.Run("rejects forbidden keywords inside a select", func(t *testing.T) {
		gen := &staticGen{reply: "SELECT * FROM domains WHERE 1=1; DELETE FROM domains"}
		g := NewSQLGenerator(gen, 100, nil)

		_, _, err := g.Generate(ctx, "show domains", nil, false)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
	})

	t.Run("rejects unknown relations", func(t *testing.T) {
		gen := &staticGen{reply: "SELECT * FROM secret_payroll"}
		g := NewSQLGenerator(gen, 100, nil)

		_, _, err := g.Generate(ctx, "show payroll", nil, false)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Contains(t, genErr.Reason, "secret_payroll")
	})

	t.Run("allows column names that embed keywords", func(t *testing.T) {
		gen := &staticGen{reply: "SELECT created_at, updated_at FROM list_requests"}
		g := NewSQLGenerator(gen, 100, nil)

		sql, _, err := g.Generate(ctx, "who requested lists", nil, false)
		require.NoError(t, err)
		assert.Contains(t, sql, "updated_at")
	})

	t.Run("propagates model errors", func(t *testing.T) {
		gen := &staticGen{err: llm.ErrUnavailable}
		g := NewSQLGenerator(gen, 100, nil)

		_, _, err := g.Generate(ctx, "show domains", nil, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, llm.ErrUnavailable))
	})

	t.Run("injects memory context only when asked", func(t *testing.T) {
		mem := &Memory{
			LastSQL:      "SELECT * FROM call_list_entries",
			LastTable:    "call_list_entries",
			LastQuestion: "show the call list",
			Entities:     map[string][]string{"name": {"Dr. Nikhil Kapoor"}},
		}

		gen := &staticGen{reply: "SELECT * FROM call_list_entries WHERE tier = 'A'"}
		g := NewSQLGenerator(gen, 100, nil)

		_, _, err := g.Generate(ctx, "which of them are tier A", mem, true)
		require.NoError(t, err)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "Dr. Nikhil Kapoor")
		assert.Contains(t, gen.prompts[0], "SELECT * FROM call_list_entries")

		gen2 := &staticGen{reply: "SELECT * FROM domains"}
		g2 := NewSQLGenerator(gen2, 100, nil)
		_, _, err = g2.Generate(ctx, "show domains", mem, false)
		require.NoError(t, err)
		require.Len(t, gen2.prompts, 1)
		assert.NotContains(t, gen2.prompts[0], "Dr. Nikhil Kapoor")
	})
}

func TestClassifyQuestion(t *testing.T) {
	cases := []struct {
		question string
		want     QueryType
	}{
		{"How many HCPs are in cardiology?", QueryCount},
		{"Show all HCPs in the database", QueryListAll},
		{"Compare version 1 and version 2", QueryComparison},
		{"What is the average tier per domain?", QueryAggregation},
		{"Who requested the oncology list?", QueryLookup},
		{"details for Dr. Kapoor", QueryLookup},
		{"hmm", QueryOther},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyQuestion(tc.question))
		})
	}
}

func TestCleanSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", cleanSQL("SELECT 1;"))
	assert.Equal(t, "SELECT 1", cleanSQL("```\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", cleanSQL("  ```sql\nSELECT 1;\n```  "))
}
