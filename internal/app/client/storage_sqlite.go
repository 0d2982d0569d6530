package client

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/migration"
)

// LocalStore — локальное хранилище клиента: пары ключ-значение
// (анонимный идентификатор) и кэш последних записей для офлайн-просмотра.
type LocalStore struct {
	db *sql.DB
}

func NewLocalStore(path string) (*LocalStore, error) {
	// Миграция работает на собственном соединении и закрывает его за
	// собой; соединение хранилища открываем после нее.
	if err := migration.NewMigration(path, migration.DefaultEngine).Up(); err != nil {
		return nil, fmt.Errorf("ошибка миграции локальной базы: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Get возвращает значение ключа, пустую строку если ключа нет
func (s *LocalStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return value, nil
}

// Put сохраняет значение ключа, перезаписывая существующее
func (s *LocalStore) Put(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, err)
	}
	return nil
}

// CacheRecord сохраняет последнюю известную запись сущности
func (s *LocalStore) CacheRecord(entity ledger.Entity, rec *ledger.Record) error {
	payload, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO record_cache (entity, owner_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity, owner_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(entity), rec.Owner, string(payload), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка кэширования записи: %w", err)
	}
	return nil
}

// CachedRecord возвращает закэшированную запись, nil если её нет
func (s *LocalStore) CachedRecord(entity ledger.Entity, owner string) (*ledger.Record, error) {
	var (
		payload   string
		updatedAt time.Time
	)
	err := s.db.QueryRow(`
		SELECT payload, updated_at FROM record_cache
		WHERE entity = ? AND owner_id = ?
	`, string(entity), owner).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кэша: %w", err)
	}

	var values ledger.Values
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("ошибка разбора кэша: %w", err)
	}

	return &ledger.Record{
		Owner:     owner,
		Values:    ledger.SchemaOf(entity).Coerce(values),
		UpdatedAt: updatedAt,
	}, nil
}

// ForgetOwner удаляет кэш владельца (выход из аккаунта)
func (s *LocalStore) ForgetOwner(owner string) error {
	if _, err := s.db.Exec("DELETE FROM record_cache WHERE owner_id = ?", owner); err != nil {
		return fmt.Errorf("ошибка очистки кэша: %w", err)
	}
	return nil
}
