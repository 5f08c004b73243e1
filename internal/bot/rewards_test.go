package bot

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	content := RenderTemplate("{user} reached level {level}, twice: {level}", snowflake.ID(42), 7)
	assert.Equal(t, "<@42> reached level 7, twice: 7", content)

	plain := RenderTemplate("no placeholders here", snowflake.ID(42), 7)
	assert.Equal(t, "no placeholders here", plain)
}

func TestCommandDefinitions(t *testing.T) {
	t.Parallel()

	defs := commands()
	require.Len(t, defs, 4)

	names := make(map[string]bool)
	for _, def := range defs {
		names[def.CommandName()] = true
	}

	assert.True(t, names[LevelCommandName])
	assert.True(t, names[LeaderboardCommandName])
	assert.True(t, names[XPCommandName])
	assert.True(t, names[SettingsCommandName])
}
