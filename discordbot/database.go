package discordbot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"

	columnGuildID        = "guild_id"
	columnName           = "name"
	columnAdminRole      = "admin_role"
	columnChannel        = "channel"
	columnTwitchUserName = "twitch_user_name"
	columnRole           = "role"
	columnMessage        = "message"
	columnSection        = "section"
	columnRoleChooserID  = "role_chooser_id"
	columnReaction       = "reaction"
	columnUpdatedAt      = "updated_at"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout = DefaultTransactionTimeout
)

// ModelUnixTime is an embeddable model with Unix timestamps (in
// milliseconds) for creation and update.
type ModelUnixTime struct {
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// Guild is the primary record for a guild's configuration. Its
// notifications and role choosers are removed along with it.
//
//nolint:lll // struct tags can't be split
type Guild struct {
	GuildID             string               `gorm:"primaryKey" json:"guild_id"`
	Name                string               `gorm:"not null" json:"name"`
	AdminRole           *string              `json:"admin_role,omitempty"`
	TwitchNotifications []TwitchNotification `gorm:"foreignKey:GuildID;references:GuildID;constraint:OnDelete:CASCADE" json:"-"`
	RoleChoosers        []RoleChooser        `gorm:"foreignKey:GuildID;references:GuildID;constraint:OnDelete:CASCADE" json:"-"`
	ModelUnixTime
}

// TwitchNotification is a twitch stream announcement configured for a
// guild. Name is the entry's key in config.json.
//
//nolint:lll // struct tags can't be split
type TwitchNotification struct {
	ModelUintID
	GuildID        string  `gorm:"not null;uniqueIndex:idx_twitch_notification" json:"guild_id"`
	Channel        string  `gorm:"not null;uniqueIndex:idx_twitch_notification" json:"channel"`
	TwitchUserName string  `gorm:"not null;uniqueIndex:idx_twitch_notification" json:"twitch_user_name"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Message        *string `json:"message,omitempty"`
	ModelUnixTime
}

// RoleChooser is a role selection message in a guild channel.
//
//nolint:lll // struct tags can't be split
type RoleChooser struct {
	ModelUintID
	GuildID     string  `gorm:"not null;uniqueIndex:idx_role_chooser" json:"guild_id"`
	Section     string  `gorm:"not null;uniqueIndex:idx_role_chooser" json:"section"`
	Channel     string  `gorm:"not null;uniqueIndex:idx_role_chooser" json:"channel"`
	Description *string `json:"description,omitempty"`
	Message     string  `gorm:"not null" json:"message"`
	ModelUnixTime
}

// RoleMapping assigns Role to members reacting with Reaction on a
// RoleChooser message.
//
//nolint:lll // struct tags can't be split
type RoleMapping struct {
	ModelUintID
	RoleChooserID uint         `gorm:"not null;uniqueIndex:idx_role_mapping" json:"role_chooser_id"`
	Reaction      string       `gorm:"not null;uniqueIndex:idx_role_mapping" json:"reaction"`
	Role          string       `gorm:"not null;check:chk_role_mappings_role,role <> ''" json:"role"`
	RoleChooser   *RoleChooser `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ModelUnixTime
}

// DBI defines the storage operations the converter needs. This is here
// primarily to enable mocking of the database operations for testing.
// [database] implements this interface for 'real' DB operations.
type DBI interface {
	DB() *gorm.DB

	Transaction(
		ctx context.Context,
		fc func(tx *gorm.DB) error,
		opts ...*sql.TxOptions,
	) (err error)

	// UpsertGuildConfig writes a guild's primary record and all of its
	// nested collections in a single transaction.
	UpsertGuildConfig(ctx context.Context, guildID string, cfg GuildConfig) error

	// GuildConfigs reassembles every stored guild's configuration.
	GuildConfigs(ctx context.Context) (map[string]GuildConfig, error)
}

// database wraps a GORM connection. Unless concurrent writes are
// enabled, transactions are serialized with mu, which SQLite needs.
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	enableConcurrentWrites bool
}

// NewDatabase returns a DBI backed by db. If log is nil, the default
// logger is used.
func NewDatabase(
	db *gorm.DB,
	log *slog.Logger,
	enableConcurrentWrites bool,
) DBI {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:                     db,
		logger:                 log.With(loggerNameKey, "writedb"),
		enableConcurrentWrites: enableConcurrentWrites,
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) Transaction(
	ctx context.Context,
	fc func(tx *gorm.DB) error,
	opts ...*sql.TxOptions,
) (err error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	return d.db.WithContext(ctx).Transaction(fc, opts...)
}

func (d *database) UpsertGuildConfig(
	ctx context.Context,
	guildID string,
	cfg GuildConfig,
) error {
	d.logger.DebugContext(ctx, "upserting guild", "guild_id", guildID, "name", cfg.Name)
	return d.Transaction(
		ctx, func(tx *gorm.DB) error {
			if err := upsertGuild(tx, guildID, cfg.Name); err != nil {
				return fmt.Errorf("upsert guild: %w", err)
			}
			if cfg.AdminRole != nil {
				if err := updateAdminRole(tx, guildID, *cfg.AdminRole); err != nil {
					return fmt.Errorf("update admin role: %w", err)
				}
			}

			for _, name := range sortedKeys(cfg.TwitchNotifications) {
				tn := cfg.TwitchNotifications[name]
				if err := upsertTwitchNotification(tx, guildID, name, tn); err != nil {
					return fmt.Errorf("upsert twitch notification %q: %w", name, err)
				}
				if tn.Message != nil {
					if err := updateTwitchNotificationMessage(
						tx,
						guildID,
						tn.Channel,
						tn.TwitchUserName,
						*tn.Message,
					); err != nil {
						return fmt.Errorf("update twitch notification %q message: %w", name, err)
					}
				}
			}

			for _, section := range sortedKeys(cfg.RoleChooser) {
				rc := cfg.RoleChooser[section]
				if err := upsertRoleChooser(tx, guildID, section, rc); err != nil {
					return fmt.Errorf("upsert role chooser %q: %w", section, err)
				}
				row, err := findRoleChooser(tx, guildID, section, rc.Channel)
				if err != nil {
					return fmt.Errorf("find role chooser %q: %w", section, err)
				}
				for _, reaction := range sortedKeys(rc.RoleMapping) {
					if err = upsertRoleMapping(
						tx,
						row.ID,
						reaction,
						rc.RoleMapping[reaction],
					); err != nil {
						return fmt.Errorf(
							"upsert role mapping %q in %q: %w",
							reaction,
							section,
							err,
						)
					}
				}
			}
			return nil
		},
	)
}

func (d *database) GuildConfigs(ctx context.Context) (map[string]GuildConfig, error) {
	db := d.db.WithContext(ctx)

	var guilds []Guild
	if err := db.Order(columnGuildID).Find(&guilds).Error; err != nil {
		return nil, err
	}
	var twitchNotifications []TwitchNotification
	if err := db.Find(&twitchNotifications).Error; err != nil {
		return nil, err
	}
	var roleChoosers []RoleChooser
	if err := db.Find(&roleChoosers).Error; err != nil {
		return nil, err
	}
	var roleMappings []RoleMapping
	if err := db.Find(&roleMappings).Error; err != nil {
		return nil, err
	}

	configs := make(map[string]GuildConfig, len(guilds))
	for _, g := range guilds {
		configs[g.GuildID] = GuildConfig{
			Name:                g.Name,
			AdminRole:           g.AdminRole,
			TwitchNotifications: map[string]TwitchNotificationConfig{},
			RoleChooser:         map[string]RoleChooserConfig{},
		}
	}

	for _, tn := range twitchNotifications {
		cfg, ok := configs[tn.GuildID]
		if !ok {
			continue
		}
		cfg.TwitchNotifications[tn.Name] = TwitchNotificationConfig{
			Channel:        tn.Channel,
			TwitchUserName: tn.TwitchUserName,
			Role:           tn.Role,
			Message:        tn.Message,
		}
	}

	type chooserKey struct {
		guildID string
		section string
	}
	choosers := make(map[uint]chooserKey, len(roleChoosers))
	for _, rc := range roleChoosers {
		cfg, ok := configs[rc.GuildID]
		if !ok {
			continue
		}
		choosers[rc.ID] = chooserKey{guildID: rc.GuildID, section: rc.Section}
		cfg.RoleChooser[rc.Section] = RoleChooserConfig{
			Channel:     rc.Channel,
			Message:     rc.Message,
			RoleMapping: map[string]string{},
		}
	}

	for _, m := range roleMappings {
		key, ok := choosers[m.RoleChooserID]
		if !ok {
			continue
		}
		configs[key.guildID].RoleChooser[key.section].RoleMapping[m.Reaction] = m.Role
	}

	return configs, nil
}

func upsertGuild(tx *gorm.DB, guildID string, name string) error {
	return tx.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: columnGuildID}},
			DoUpdates: clause.AssignmentColumns([]string{columnName, columnUpdatedAt}),
		},
	).Create(&Guild{GuildID: guildID, Name: name}).Error
}

func updateAdminRole(tx *gorm.DB, guildID string, adminRole string) error {
	return tx.Model(&Guild{}).
		Where(columnGuildID+" = ?", guildID).
		Update(columnAdminRole, adminRole).Error
}

func upsertTwitchNotification(
	tx *gorm.DB,
	guildID string,
	name string,
	tn TwitchNotificationConfig,
) error {
	return tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: columnGuildID},
				{Name: columnChannel},
				{Name: columnTwitchUserName},
			},
			DoUpdates: clause.AssignmentColumns(
				[]string{columnName, columnRole, columnUpdatedAt},
			),
		},
	).Create(
		&TwitchNotification{
			GuildID:        guildID,
			Channel:        tn.Channel,
			TwitchUserName: tn.TwitchUserName,
			Name:           name,
			Role:           tn.Role,
		},
	).Error
}

func updateTwitchNotificationMessage(
	tx *gorm.DB,
	guildID string,
	channel string,
	twitchUserName string,
	message string,
) error {
	return tx.Model(&TwitchNotification{}).
		Where(
			columnGuildID+" = ? AND "+columnChannel+" = ? AND "+columnTwitchUserName+" = ?",
			guildID,
			channel,
			twitchUserName,
		).
		Update(columnMessage, message).Error
}

func upsertRoleChooser(
	tx *gorm.DB,
	guildID string,
	section string,
	rc RoleChooserConfig,
) error {
	return tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: columnGuildID},
				{Name: columnSection},
				{Name: columnChannel},
			},
			DoUpdates: clause.AssignmentColumns(
				[]string{columnMessage, columnUpdatedAt},
			),
		},
	).Create(
		&RoleChooser{
			GuildID: guildID,
			Section: section,
			Channel: rc.Channel,
			Message: rc.Message,
		},
	).Error
}

func findRoleChooser(
	tx *gorm.DB,
	guildID string,
	section string,
	channel string,
) (*RoleChooser, error) {
	var rc RoleChooser
	err := tx.Where(
		columnGuildID+" = ? AND "+columnSection+" = ? AND "+columnChannel+" = ?",
		guildID,
		section,
		channel,
	).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func upsertRoleMapping(
	tx *gorm.DB,
	roleChooserID uint,
	reaction string,
	role string,
) error {
	return tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: columnRoleChooserID},
				{Name: columnReaction},
			},
			DoUpdates: clause.AssignmentColumns([]string{columnRole, columnUpdatedAt}),
		},
	).Create(
		&RoleMapping{
			RoleChooserID: roleChooserID,
			Reaction:      reaction,
			Role:          role,
		},
	).Error
}

// CreateDB initializes and returns a GORM database connection based on
// the specified database type, logging at the default database log level.
// It also performs auto-migration for the storage models.
//
// Parameters:
//   - ctx: The context for the database operations.
//   - databaseType: The type of the database, must be 'sqlite' or 'postgres'.
//   - database: The database connection string, or SQLite file path.
func CreateDB(ctx context.Context, databaseType string, database string) (*gorm.DB, error) {
	return createDB(
		ctx,
		databaseType,
		database,
		NewLogHandler(os.Stdout, DefaultDatabaseLogLevel),
		DefaultDatabaseSlowThreshold,
	)
}

// OpenDB is CreateDB using the database settings and log level in cfg.
func OpenDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	return createDB(
		ctx,
		cfg.DatabaseType,
		cfg.Database,
		NewLogHandler(os.Stdout, cfg.DatabaseLogLevel),
		cfg.DatabaseSlowThreshold,
	)
}

func createDB(
	ctx context.Context,
	databaseType string,
	database string,
	handler slog.Handler,
	slowThreshold time.Duration,
) (*gorm.DB, error) {
	dbLogger := slog.New(handler).With(loggerNameKey, "database")
	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)

	db, err := getDB(databaseType, database, newGORMLogger(handler, slowThreshold))
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(
				&Guild{},
				&TwitchNotification{},
				&RoleChooser{},
				&RoleMapping{},
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if databaseType == dbTypeSQLite {
		if err = configureSQLite(ctx, db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// configureSQLite limits the pool to a single connection and applies
// sqliteExecPragma to it.
func configureSQLite(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
	sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
	sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)

	pragmaErrors := make([]error, 0, len(sqliteExecPragma))
	for _, p := range sqliteExecPragma {
		if execErr := db.WithContext(ctx).Exec(p).Error; execErr != nil {
			pragmaErrors = append(pragmaErrors, fmt.Errorf("%s: %w", p, execErr))
		}
	}
	return errors.Join(pragmaErrors...)
}

// getDB initializes and returns a GORM database connection based on the
// specified database type.
//
// Parameters:
//   - databaseType: Must be 'sqlite' or 'postgres'
//   - database: Database connection string, or SQLite file path.
//   - gormLogger: A pointer to a gormStructuredLogger instance for
//     logging database operations.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(sqlite.Open(database), gormConfig)
	case dbTypePostgres:
		return gorm.Open(postgres.Open(database), gormConfig)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}
