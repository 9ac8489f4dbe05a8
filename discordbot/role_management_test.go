package discordbot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionKey(t *testing.T) {
	testCases := []struct {
		channel  string
		section  string
		expected string
	}{
		{channel: "roles", section: "Colors", expected: "roles_Colors"},
		{channel: "🎨-roles", section: "Pick a color!", expected: "-roles_Pickacolor"},
		{channel: "a.b,c", section: "x_y", expected: "a.b,c_x_y"},
		{channel: "日本", section: "ß", expected: "日本_ß"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, SectionKey(tc.channel, tc.section))
	}
}

func TestParseReaction(t *testing.T) {
	testCases := []struct {
		input    string
		expected discordgo.Emoji
		key      string
	}{
		{
			input:    "<:pepe:123456789012345678>",
			expected: discordgo.Emoji{ID: "123456789012345678", Name: "pepe"},
			key:      "123456789012345678",
		},
		{
			input:    "<a:dance:223456789012345678>",
			expected: discordgo.Emoji{ID: "223456789012345678", Name: "dance", Animated: true},
			key:      "223456789012345678",
		},
		{
			input:    "🟥",
			expected: discordgo.Emoji{Name: "🟥"},
			key:      "🟥",
		},
		{
			input:    "<not:an emoji>",
			expected: discordgo.Emoji{Name: "<not:an emoji>"},
			key:      "<not:an emoji>",
		},
	}
	for _, tc := range testCases {
		t.Run(
			tc.input, func(t *testing.T) {
				emoji := ParseReaction(tc.input)
				require.NotNil(t, emoji)
				assert.Equal(t, tc.expected, *emoji)
				assert.Equal(t, tc.key, reactionKey(emoji))
			},
		)
	}
}

func testRoleManagementConfig() RoleManagementConfig {
	return RoleManagementConfig{
		RoleChoosers: map[string]RoleChooserSection{
			"roles_Colors": {
				Section:   "Colors",
				ChannelID: "100",
				MessageID: "200",
				RoleMapping: []RoleMappingEntry{
					{Emoji: "🟥", EmojiName: stringPointer("🟥"), Role: "1", RoleName: "red"},
					{Emoji: "300", EmojiName: stringPointer("pepe"), Role: "2", RoleName: "pepe"},
				},
			},
			"roles_Games": {
				Section:   "Games",
				ChannelID: "100",
				MessageID: "201",
			},
			"other_Colors": {
				Section:   "Colors",
				ChannelID: "101",
				MessageID: "202",
			},
		},
	}
}

func TestRoleManagementUpdate(t *testing.T) {
	orig := testRoleManagementConfig()
	updated := orig.Update("new_Section", RoleChooserSection{Section: "Section", ChannelID: "102"})

	assert.Len(t, updated.RoleChoosers, 4)
	assert.Len(t, orig.RoleChoosers, 3, "receiver should not be modified")
}

func TestRoleManagementUpdateMessage(t *testing.T) {
	orig := testRoleManagementConfig()

	updated, ok := orig.UpdateMessage("roles_Games", "999")
	require.True(t, ok)
	assert.Equal(t, "999", updated.RoleChoosers["roles_Games"].MessageID)
	assert.Equal(t, "201", orig.RoleChoosers["roles_Games"].MessageID)

	_, ok = orig.UpdateMessage("missing", "999")
	assert.False(t, ok)
}

func TestRoleManagementUpdateSection(t *testing.T) {
	orig := testRoleManagementConfig()

	updated, ok := orig.UpdateSection("roles_Games", "Gaming")
	require.True(t, ok)
	assert.Equal(t, "Gaming", updated.RoleChoosers["roles_Games"].Section)
	assert.Equal(t, "Games", orig.RoleChoosers["roles_Games"].Section)

	_, ok = orig.UpdateSection("missing", "Gaming")
	assert.False(t, ok)
}

func TestRoleManagementFind(t *testing.T) {
	rm := testRoleManagementConfig()

	key, section, ok := rm.Find("Colors", "101")
	require.True(t, ok)
	assert.Equal(t, "other_Colors", key)
	assert.Equal(t, "202", section.MessageID)

	_, _, ok = rm.Find("Colors", "103")
	assert.False(t, ok)
}

func TestRoleManagementDelete(t *testing.T) {
	orig := testRoleManagementConfig()
	deleted := orig.Delete("roles_Games")

	assert.NotContains(t, deleted.RoleChoosers, "roles_Games")
	assert.Contains(t, orig.RoleChoosers, "roles_Games")
}

func TestRoleManagementDeleteRoleMapping(t *testing.T) {
	orig := testRoleManagementConfig()

	deleted, ok := orig.DeleteRoleMapping("roles_Colors", ParseReaction("<:pepe:300>"))
	require.True(t, ok)
	require.Len(t, deleted.RoleChoosers["roles_Colors"].RoleMapping, 1)
	assert.Equal(t, "🟥", deleted.RoleChoosers["roles_Colors"].RoleMapping[0].Emoji)
	assert.Len(t, orig.RoleChoosers["roles_Colors"].RoleMapping, 2)

	_, ok = orig.DeleteRoleMapping("missing", ParseReaction("🟥"))
	assert.False(t, ok)
}

func TestRoleManagementUpdateRoleMapping(t *testing.T) {
	orig := testRoleManagementConfig()

	updated, ok := orig.UpdateRoleMapping("roles_Colors", ParseReaction("🟥"), "3", "crimson")
	require.True(t, ok)

	mapping := updated.RoleChoosers["roles_Colors"].RoleMapping
	require.Len(t, mapping, 2)
	assert.Equal(t, "300", mapping[0].Emoji)
	assert.Equal(
		t,
		RoleMappingEntry{Emoji: "🟥", EmojiName: stringPointer("🟥"), Role: "3", RoleName: "crimson"},
		mapping[1],
	)

	role, ok := updated.RoleForReaction("roles_Colors", ParseReaction("🟥"))
	require.True(t, ok)
	assert.Equal(t, "3", role)

	role, ok = orig.RoleForReaction("roles_Colors", ParseReaction("🟥"))
	require.True(t, ok)
	assert.Equal(t, "1", role)

	_, ok = orig.UpdateRoleMapping("missing", ParseReaction("🟥"), "3", "crimson")
	assert.False(t, ok)
}

func TestRoleManagementList(t *testing.T) {
	rm := testRoleManagementConfig()

	sections := rm.List("100")
	require.Len(t, sections, 2)
	assert.Equal(t, "Colors", sections[0].Section)
	assert.Equal(t, "Games", sections[1].Section)

	assert.Empty(t, rm.List("999"))
}

func TestRoleForReaction(t *testing.T) {
	rm := testRoleManagementConfig()

	role, ok := rm.RoleForReaction("roles_Colors", ParseReaction("<:pepe:300>"))
	require.True(t, ok)
	assert.Equal(t, "2", role)

	_, ok = rm.RoleForReaction("roles_Colors", ParseReaction("🟦"))
	assert.False(t, ok)

	_, ok = rm.RoleForReaction("missing", ParseReaction("🟥"))
	assert.False(t, ok)
}

func TestRoleManagementFromGuildConfig(t *testing.T) {
	rm := RoleManagementFromGuildConfig(
		GuildConfig{
			Name: "Guild",
			RoleChooser: map[string]RoleChooserConfig{
				"Colors": {
					Channel: "100",
					Message: "200",
					RoleMapping: map[string]string{
						"🟥":           "1",
						"<:pepe:300>": "2",
					},
				},
			},
		},
	)

	require.Contains(t, rm.RoleChoosers, "100_Colors")
	section := rm.RoleChoosers["100_Colors"]
	assert.Equal(t, "Colors", section.Section)
	assert.Equal(t, "200", section.MessageID)
	require.Len(t, section.RoleMapping, 2)

	role, ok := rm.RoleForReaction("100_Colors", &discordgo.Emoji{ID: "300", Name: "pepe"})
	require.True(t, ok)
	assert.Equal(t, "2", role)

	role, ok = rm.RoleForReaction("100_Colors", ParseReaction("🟥"))
	require.True(t, ok)
	assert.Equal(t, "1", role)
}
