// Package discordbot migrates the bot's versioned config.json to the
// current schema and imports it into relational storage.
//
// config.json is stored as an envelope:
//
//	{"version": 1, "data": {"<guild id>": {...}}}
//
// Documents are parsed into an untyped Document tree, stepped forward
// through a Registry of migrations until they reach the current
// version, validated against the current JSON schema, and decoded into
// GuildConfig values.
//
// Key components of the package include:
//
//   - Document: the untyped JSON tree migrations operate on.
//   - Registry: the ordered table of migration steps.
//   - Migrator: parses, migrates, validates and decodes in one call.
//   - DBI: GORM-backed storage, with one transaction per guild.
//   - RoleManagementConfig: role chooser state derived from a guild's config.
//
// Failures are reported as *DecodeError (the envelope can't be read),
// *MigrationError (no step leads onward, or a step failed) or
// *SchemaError (the migrated document doesn't fit the current model).
package discordbot
