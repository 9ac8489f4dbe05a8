package discordbot

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// CurrentGuildConfigVersion is the schema version of config.json that
// GuildConfig decodes from. Bump it together with a new step in
// GuildConfigSteps whenever the file's shape changes.
const CurrentGuildConfigVersion = 2

const (
	guildConfigSchemaName = "https://discordbot/schema/guild_config.v2.json"

	keyTwitchNotifications = "twitchNotifications"
	keyOldMessage          = "oldMessage"
	keyMessage             = "message"
	keyEditableRoles       = "editableRoles"
	keyRoleChooser         = "roleChooser"
)

//go:embed schema/guild_config.v2.json
var guildConfigSchemaV2 []byte

// GuildConfig is the per-guild configuration stored in config.json,
// keyed by guild ID.
//
//nolint:lll // struct tags can't be split
type GuildConfig struct {
	// Guild name, as last seen by the bot
	Name string `json:"name" binding:"required"`

	// ID of the role allowed to control the bot, if any
	AdminRole *string `json:"adminRole,omitempty"`

	// Twitch stream notifications, keyed by an arbitrary entry name
	TwitchNotifications map[string]TwitchNotificationConfig `json:"twitchNotifications" binding:"dive"`

	// Role chooser messages, keyed by section name
	RoleChooser map[string]RoleChooserConfig `json:"roleChooser" binding:"dive"`
}

// TwitchNotificationConfig announces a twitch stream in a channel.
type TwitchNotificationConfig struct {
	Channel        string  `json:"channel" binding:"required"`
	TwitchUserName string  `json:"twitchUserName,omitempty"`
	Role           string  `json:"role,omitempty"`
	Message        *string `json:"message,omitempty"`
}

// RoleChooserConfig is a message members react to in order to pick roles.
//
//nolint:lll // struct tags can't be split
type RoleChooserConfig struct {
	Channel string `json:"channel" binding:"required"`
	Message string `json:"message" binding:"required"`

	// RoleMapping maps a reaction (unicode emoji or custom emoji ID) to a role ID
	RoleMapping map[string]string `json:"roleMapping" binding:"dive,keys,required,endkeys,required"`
}

func (g *GuildConfig) normalize() {
	if g.TwitchNotifications == nil {
		g.TwitchNotifications = map[string]TwitchNotificationConfig{}
	}
	if g.RoleChooser == nil {
		g.RoleChooser = map[string]RoleChooserConfig{}
	}
	for section, rc := range g.RoleChooser {
		if rc.RoleMapping == nil {
			rc.RoleMapping = map[string]string{}
			g.RoleChooser[section] = rc
		}
	}
}

// GuildConfigSteps returns the migration table for config.json:
//
//	0 -> 1: twitchNotifications.*.oldMessage is renamed to message
//	1 -> 2: editableRoles is renamed to roleChooser, defaulting to {}
func GuildConfigSteps() []Step {
	return []Step{
		{
			Interval: Interval{From: 0, To: 1},
			Name:     "rename-twitch-notification-message",
			Apply:    renameTwitchNotificationMessage,
		},
		{
			Interval: Interval{From: 1, To: 2},
			Name:     "rename-editable-roles",
			Apply:    renameEditableRoles,
		},
	}
}

// NewGuildConfigMigrator returns a Migrator that brings config.json up to
// CurrentGuildConfigVersion and decodes it into GuildConfig values.
func NewGuildConfigMigrator() (*Migrator[map[string]GuildConfig], error) {
	registry, err := NewRegistry(CurrentGuildConfigVersion, GuildConfigSteps()...)
	if err != nil {
		return nil, err
	}
	schema, err := CompileSchema(guildConfigSchemaName, guildConfigSchemaV2)
	if err != nil {
		return nil, err
	}
	return NewMigrator[map[string]GuildConfig](
		registry,
		schema,
		decodeGuildConfigs,
	), nil
}

// EncodeGuildConfigs renders configs as a current-version envelope.
func EncodeGuildConfigs(configs map[string]GuildConfig) ([]byte, error) {
	if configs == nil {
		configs = map[string]GuildConfig{}
	}
	return json.MarshalIndent(
		struct {
			Version int                    `json:"version"`
			Data    map[string]GuildConfig `json:"data"`
		}{
			Version: CurrentGuildConfigVersion,
			Data:    configs,
		},
		"",
		"  ",
	)
}

func decodeGuildConfigs(doc Document) (map[string]GuildConfig, error) {
	var configs map[string]GuildConfig
	decoder, err := mapstructure.NewDecoder(
		&mapstructure.DecoderConfig{
			TagName: "json",
			Result:  &configs,
		},
	)
	if err != nil {
		return nil, err
	}
	if err = decoder.Decode(Native(doc)); err != nil {
		return nil, err
	}
	if configs == nil {
		configs = map[string]GuildConfig{}
	}

	for guildID, cfg := range configs {
		cfg.normalize()
		if err = structValidator.Struct(cfg); err != nil {
			return nil, fmt.Errorf("guild %s: %w", guildID, err)
		}
		configs[guildID] = cfg
	}
	return configs, nil
}

// mapGuilds applies fn to every guild object of a config.json data
// document.
func mapGuilds(
	doc Document,
	fn func(guildID string, guild Object) (Object, error),
) (Document, error) {
	guilds, ok := doc.(Object)
	if !ok {
		return nil, fmt.Errorf("expected an object of guilds, got %s", doc.Kind())
	}
	out, err := guilds.MapValues(
		func(guildID string, v Document) (Document, error) {
			guild, ok := v.(Object)
			if !ok {
				return nil, fmt.Errorf(
					"guild %s: expected an object, got %s",
					guildID,
					v.Kind(),
				)
			}
			migrated, err := fn(guildID, guild)
			if err != nil {
				return nil, err
			}
			return migrated, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func renameTwitchNotificationMessage(doc Document) (Document, error) {
	return mapGuilds(
		doc, func(guildID string, guild Object) (Object, error) {
			v, ok := guild[keyTwitchNotifications]
			if !ok {
				return guild, nil
			}
			notifications, ok := v.(Object)
			if !ok {
				return nil, fmt.Errorf(
					"guild %s: %s: expected an object, got %s",
					guildID,
					keyTwitchNotifications,
					v.Kind(),
				)
			}
			renamed, err := notifications.MapValues(
				func(key string, entry Document) (Document, error) {
					e, ok := entry.(Object)
					if !ok {
						return nil, fmt.Errorf(
							"guild %s: %s.%s: expected an object, got %s",
							guildID,
							keyTwitchNotifications,
							key,
							entry.Kind(),
						)
					}
					return e.Rename(keyOldMessage, keyMessage, nil), nil
				},
			)
			if err != nil {
				return nil, err
			}
			return guild.Set(keyTwitchNotifications, renamed), nil
		},
	)
}

func renameEditableRoles(doc Document) (Document, error) {
	return mapGuilds(
		doc, func(_ string, guild Object) (Object, error) {
			return guild.Rename(keyEditableRoles, keyRoleChooser, Object{}), nil
		},
	)
}
