// Package durablemailbox implements actor.Mailbox over a SQLite-backed
// queue table, grounded on babyman-slug-lang's internal/svc/sqlite service
// (database/sql with the mattn/go-sqlite3 driver registered via blank
// import) and schema-managed with golang-migrate, the way Roasbeef-substrate
// manages its own storage layer.
//
// Envelopes cannot cross a process boundary unchanged: Receiver and Reply
// are in-process pointers. A durable mailbox only persists the payload
// (via encoding/gob) alongside the receiver's uuid, and Dequeue rehydrates
// envelopes against a Reference supplied at construction time. Payloads
// must therefore be gob-registered by the caller if they are interfaces or
// unexported-field structs.
package durablemailbox

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	"github.com/arvostack/actorcore/actor"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
)

const schemaMigrationsTable = "durablemailbox_schema_migrations"

const createQueueTableSQL = `
CREATE TABLE IF NOT EXISTS mailbox_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	receiver_id TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Mailbox persists envelopes for a single reference in a SQLite table and
// satisfies actor.Mailbox. actor.NewReference always builds its own
// in-process queue, so a Reference does not drain a Mailbox of this type.
type Mailbox struct {
	db         *sql.DB
	receiver   *actor.Reference
	receiverID string
}

// Open connects to the SQLite database at dsn, applies pending migrations
// from migrationsPath if non-empty, ensures the queue table exists, and
// returns a Mailbox scoped to receiver's uuid.
func Open(dsn string, migrationsPath string, receiver *actor.Reference) (*Mailbox, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("durablemailbox: open: %w", err)
	}
	// SQLite allows only one writer at a time, and an in-memory dsn is
	// private per connection: a pool of more than one connection would
	// silently fragment an in-memory mailbox across isolated databases.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if migrationsPath != "" {
		if err := applyMigrations(db, dsn, migrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	} else if _, err := db.Exec(createQueueTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("durablemailbox: create table: %w", err)
	}

	return &Mailbox{db: db, receiver: receiver, receiverID: receiver.UUID().String()}, nil
}

func applyMigrations(db *sql.DB, dsn string, migrationsPath string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: schemaMigrationsTable})
	if err != nil {
		return fmt.Errorf("durablemailbox: migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("durablemailbox: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("durablemailbox: migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (m *Mailbox) Close() error {
	return m.db.Close()
}

// Enqueue persists env's payload. Reply sinks are not preserved: a durable
// mailbox models fire-and-forget delivery across a restart or process
// crash, not a pending ask waiting for a response that no longer exists
// once the process that issued it is gone.
func (m *Mailbox) Enqueue(env *actor.Envelope) error {
	body, err := serialize(env.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", actor.ErrMailboxAppendFailed, err)
	}
	if _, err := m.db.Exec(
		`INSERT INTO mailbox_queue (receiver_id, payload) VALUES (?, ?)`,
		m.receiverID, body,
	); err != nil {
		return fmt.Errorf("%w: %v", actor.ErrMailboxAppendFailed, err)
	}
	return nil
}

// Dequeue removes and returns the oldest persisted envelope for this
// mailbox's receiver, rehydrated with Reply left nil.
func (m *Mailbox) Dequeue() (*actor.Envelope, bool) {
	tx, err := m.db.Begin()
	if err != nil {
		return nil, false
	}
	defer tx.Rollback()

	var id int64
	var body []byte
	row := tx.QueryRow(
		`SELECT id, payload FROM mailbox_queue WHERE receiver_id = ? ORDER BY id ASC LIMIT 1`,
		m.receiverID,
	)
	if err := row.Scan(&id, &body); err != nil {
		return nil, false
	}
	if _, err := tx.Exec(`DELETE FROM mailbox_queue WHERE id = ?`, id); err != nil {
		return nil, false
	}
	if err := tx.Commit(); err != nil {
		return nil, false
	}

	payload, err := deserialize(body)
	if err != nil {
		return nil, false
	}
	return &actor.Envelope{Receiver: m.receiver, Payload: payload}, true
}

// Size reports how many envelopes are currently persisted for this
// mailbox's receiver.
func (m *Mailbox) Size() int {
	var count int
	row := m.db.QueryRow(`SELECT COUNT(*) FROM mailbox_queue WHERE receiver_id = ?`, m.receiverID)
	if err := row.Scan(&count); err != nil {
		return 0
	}
	return count
}

// IsEmpty reports whether Size() == 0.
func (m *Mailbox) IsEmpty() bool {
	return m.Size() == 0
}

// serialize encodes a payload with encoding/gob. This codec is a private
// implementation detail of durablemailbox and remote; the core package
// defines no wire format of its own.
func serialize(payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserialize(body []byte) (interface{}, error) {
	var payload interface{}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
