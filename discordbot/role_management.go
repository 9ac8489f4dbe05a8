package discordbot

import (
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
)

// RoleManagementConfig is a guild's role chooser state, keyed by
// SectionKey. Every operation returns a new value and leaves the
// receiver untouched.
type RoleManagementConfig struct {
	RoleChoosers map[string]RoleChooserSection `json:"roleChoosers"`
}

// RoleChooserSection is a single role chooser message.
type RoleChooserSection struct {
	Section     string             `json:"section"`
	ChannelID   string             `json:"channel"`
	MessageID   string             `json:"message"`
	RoleMapping []RoleMappingEntry `json:"roleMapping"`
}

// RoleMappingEntry maps a reaction to a role. Emoji holds the custom
// emoji ID, or the unicode emoji itself.
type RoleMappingEntry struct {
	Emoji     string  `json:"emoji"`
	EmojiName *string `json:"emojiName,omitempty"`
	Role      string  `json:"role"`
	RoleName  string  `json:"roleName"`
}

// SectionKey builds the key a role chooser is stored under from the
// name of its channel and its section title. Only letters, digits and
// the characters `.,-_` are kept.
func SectionKey(channelName string, section string) string {
	return filterSectionKey(channelName) + "_" + filterSectionKey(section)
}

func filterSectionKey(s string) string {
	return strings.Map(
		func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".,-_", r) {
				return r
			}
			return -1
		},
		s,
	)
}

// ParseReaction parses a reaction as typed in a message: `<:name:id>`
// and `<a:name:id>` are custom emoji, anything else is taken as a
// unicode emoji.
func ParseReaction(s string) *discordgo.Emoji {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		parts := strings.Split(strings.Trim(s, "<>"), ":")
		if len(parts) == 3 && parts[2] != "" && (parts[0] == "" || parts[0] == "a") {
			return &discordgo.Emoji{
				ID:       parts[2],
				Name:     parts[1],
				Animated: parts[0] == "a",
			}
		}
	}
	return &discordgo.Emoji{Name: s}
}

// reactionKey is how an emoji is stored in a RoleMappingEntry.
func reactionKey(emoji *discordgo.Emoji) string {
	if emoji.ID != "" {
		return emoji.ID
	}
	return emoji.Name
}

// RoleManagementFromGuildConfig builds role chooser state from a guild's
// config.json entry. Channel names aren't known offline, so keys use
// the channel ID instead.
func RoleManagementFromGuildConfig(cfg GuildConfig) RoleManagementConfig {
	rm := RoleManagementConfig{
		RoleChoosers: make(map[string]RoleChooserSection, len(cfg.RoleChooser)),
	}
	for _, section := range sortedKeys(cfg.RoleChooser) {
		rc := cfg.RoleChooser[section]
		entries := make([]RoleMappingEntry, 0, len(rc.RoleMapping))
		for _, reaction := range sortedKeys(rc.RoleMapping) {
			emoji := ParseReaction(reaction)
			entries = append(
				entries,
				RoleMappingEntry{
					Emoji:     reactionKey(emoji),
					EmojiName: stringPointer(emoji.Name),
					Role:      rc.RoleMapping[reaction],
				},
			)
		}
		rm.RoleChoosers[SectionKey(rc.Channel, section)] = RoleChooserSection{
			Section:     section,
			ChannelID:   rc.Channel,
			MessageID:   rc.Message,
			RoleMapping: entries,
		}
	}
	return rm
}

func (c RoleManagementConfig) clone() RoleManagementConfig {
	choosers := make(map[string]RoleChooserSection, len(c.RoleChoosers)+1)
	for k, v := range c.RoleChoosers {
		choosers[k] = v
	}
	return RoleManagementConfig{RoleChoosers: choosers}
}

// Update stores value under key, replacing any existing section.
func (c RoleManagementConfig) Update(key string, value RoleChooserSection) RoleManagementConfig {
	out := c.clone()
	out.RoleChoosers[key] = value
	return out
}

func (c RoleManagementConfig) UpdateMessage(key string, messageID string) (RoleManagementConfig, bool) {
	section, ok := c.RoleChoosers[key]
	if !ok {
		return c, false
	}
	section.MessageID = messageID
	return c.Update(key, section), true
}

// UpdateSection changes the section title. The key is left as is.
func (c RoleManagementConfig) UpdateSection(key string, title string) (RoleManagementConfig, bool) {
	section, ok := c.RoleChoosers[key]
	if !ok {
		return c, false
	}
	section.Section = title
	return c.Update(key, section), true
}

// Find returns the first section, by key order, with the given title in
// channelID.
func (c RoleManagementConfig) Find(title string, channelID string) (string, RoleChooserSection, bool) {
	for _, key := range sortedKeys(c.RoleChoosers) {
		section := c.RoleChoosers[key]
		if section.Section == title && section.ChannelID == channelID {
			return key, section, true
		}
	}
	return "", RoleChooserSection{}, false
}

func (c RoleManagementConfig) Delete(key string) RoleManagementConfig {
	out := c.clone()
	delete(out.RoleChoosers, key)
	return out
}

// DeleteRoleMapping removes every mapping for emoji from the section
// stored under key.
func (c RoleManagementConfig) DeleteRoleMapping(
	key string,
	emoji *discordgo.Emoji,
) (RoleManagementConfig, bool) {
	section, ok := c.RoleChoosers[key]
	if !ok {
		return c, false
	}
	rk := reactionKey(emoji)
	mapping := make([]RoleMappingEntry, 0, len(section.RoleMapping))
	for _, entry := range section.RoleMapping {
		if entry.Emoji != rk {
			mapping = append(mapping, entry)
		}
	}
	section.RoleMapping = mapping
	return c.Update(key, section), true
}

// UpdateRoleMapping maps emoji to the given role, replacing an existing
// mapping for the same emoji. The new entry goes last.
func (c RoleManagementConfig) UpdateRoleMapping(
	key string,
	emoji *discordgo.Emoji,
	roleID string,
	roleName string,
) (RoleManagementConfig, bool) {
	out, ok := c.DeleteRoleMapping(key, emoji)
	if !ok {
		return c, false
	}
	section := out.RoleChoosers[key]
	section.RoleMapping = append(
		section.RoleMapping,
		RoleMappingEntry{
			Emoji:     reactionKey(emoji),
			EmojiName: stringPointer(emoji.Name),
			Role:      roleID,
			RoleName:  roleName,
		},
	)
	out.RoleChoosers[key] = section
	return out, true
}

// List returns the sections posted in channelID, ordered by key.
func (c RoleManagementConfig) List(channelID string) []RoleChooserSection {
	var sections []RoleChooserSection
	for _, key := range sortedKeys(c.RoleChoosers) {
		if section := c.RoleChoosers[key]; section.ChannelID == channelID {
			sections = append(sections, section)
		}
	}
	return sections
}

// RoleForReaction returns the role ID mapped to emoji in the section
// stored under key.
func (c RoleManagementConfig) RoleForReaction(key string, emoji *discordgo.Emoji) (string, bool) {
	section, ok := c.RoleChoosers[key]
	if !ok {
		return "", false
	}
	rk := reactionKey(emoji)
	for _, entry := range section.RoleMapping {
		if entry.Emoji == rk {
			return entry.Role, true
		}
	}
	return "", false
}
