package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	queuedomain "github.com/smallbiznis/queueline/internal/queue/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// waitingUserIndex backs the one-waiting-ticket-per-user rule. MySQL has no
// partial indexes and relies on the queue lock alone.
const (
	waitingUserIndexName = "ux_tickets_waiting_user"
	waitingUserIndex     = `CREATE UNIQUE INDEX IF NOT EXISTS ux_tickets_waiting_user
	ON tickets (user_id) WHERE status = 'waiting'`
)

// RunMigrations applies the embedded Postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models for SQLite and MySQL.
//
// The SQLite migrator cannot parse the partial waiting-user index back out of
// sqlite_master, so on SQLite existing tables are left alone and only missing
// ones are created.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	models := []any{
		&identitydomain.User{},
		&queuedomain.Ticket{},
		&queuedomain.TicketSequence{},
		&queuedomain.QueueEvent{},
	}

	dialect := conn.Dialector.Name()
	migrator := conn.Migrator()
	for _, model := range models {
		if dialect == "sqlite" && migrator.HasTable(model) {
			continue
		}
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	if dialect == "mysql" {
		return nil
	}
	if migrator.HasIndex(&queuedomain.Ticket{}, waitingUserIndexName) {
		return nil
	}
	if err := conn.Exec(waitingUserIndex).Error; err != nil {
		return fmt.Errorf("create waiting user index: %w", err)
	}
	return nil
}
