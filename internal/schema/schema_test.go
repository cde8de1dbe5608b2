package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownRelation(t *testing.T) {
	assert.True(t, IsKnownRelation("domains"))
	assert.True(t, IsKnownRelation("view_target_list_full"))
	assert.True(t, IsKnownRelation("v_current_state_target_list"))
	assert.False(t, IsKnownRelation("pg_tables"))
	assert.False(t, IsKnownRelation(""))
}

func TestContextCoversAllRelations(t *testing.T) {
	for _, rel := range Relations {
		assert.True(t, strings.Contains(Context, rel),
			"schema context must document %s", rel)
	}
}
