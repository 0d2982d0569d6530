package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	// Blank import required for SQLite driver registration for migrations
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sqlite/*.sql
var migrations embed.FS

// Migrator — интерфейс для самой библиотеки migrate.Migrate
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine — фабрика для создания мигратора (чтобы не лезть в ФС и БД в тестах)
type MigrationEngine func(databasePath string) (Migrator, error)

type Migration struct {
	path   string
	engine MigrationEngine
}

func NewMigration(path string, engine MigrationEngine) *Migration {
	return &Migration{
		path:   path,
		engine: engine,
	}
}

// DefaultEngine — реальная реализация: встроенные миграции поверх
// собственного соединения SQLite. Соединение живет только на время
// миграции и закрывается вместе с мигратором, не задевая соединение
// самого хранилища.
func DefaultEngine(databasePath string) (Migrator, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	source, err := iofs.New(migrations, "sqlite")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open migration driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, "sqlite3", driver)
}

func (mg *Migration) Up() (err error) {
	m, err := mg.engine(mg.path)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w; migration up error", err)
	}
	return nil
}
