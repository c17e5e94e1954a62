// Package store persists configurations in a SQLite database.
//
// The layout is a single config table with three unique indexes (id,
// config_key, readonly_config_key). Rows carry the configuration document
// as a JSON text column. Every "row must exist" precondition is checked
// with a COUNT query before the main statement so that a missing row
// surfaces as a specific error instead of an empty result.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/util"
)

// State reports the outcome of the last store operation. Each call
// overwrites the previous value; it is advisory, errors are authoritative.
type State int

const (
	StateGood State = iota
	StateUnknownKey
	StateUnknownID
	StateError
	StateFatal
)

const (
	createTableStmt = `create table if not exists config(config_text text, id integer not null constraint config_pk primary key autoincrement, config_key text, readonly_config_key text);`

	createIndexIDStmt  = `create unique index if not exists config_id_uindex on config (id);`
	createIndexKeyStmt = `create unique index if not exists config_config_key_uindex on config (config_key);`
	createIndexROStmt  = `create unique index if not exists config_readonly_config_key_uindex on config (readonly_config_key);`

	insertConfigStmt = `insert into config (config_text, config_key, readonly_config_key) values (?, ?, ?);`

	selectKeysByIDStmt    = `select config_key, readonly_config_key from config where id = ?;`
	selectIDByKeyStmt     = `select id from config where config_key = ? or readonly_config_key = ?;`
	selectTextByIDStmt    = `select config_text from config where id = ?;`
	updateTextByIDStmt    = `update config set config_text = ? where id = ?;`
	countByKeyStmt        = `select count(*) from config where config_key = ? or readonly_config_key = ?;`
	countByWriteKeyStmt   = `select count(*) from config where config_key = ?;`
	countByIDStmt         = `select count(*) from config where id = ?;`
)

// maximumRetries bounds the insert attempts in CreateConfig; the database,
// not the generator, is the authority on key uniqueness.
const maximumRetries = 4

// CreateResult carries everything a caller needs after CreateConfig.
type CreateResult struct {
	ConfigKey   string
	ReadonlyKey string
	ConfigID    uint64
}

// Store is a SQLite-backed configuration store.
type Store struct {
	db     *sql.DB
	state  State
	keygen func(name string) string
}

// Open opens (creating if necessary) the store at path and ensures the
// table and its unique indexes exist. Opening an existing store is a no-op.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, util.NewStoreError("Open", err)
	}
	for _, stmt := range []string{createTableStmt, createIndexIDStmt, createIndexKeyStmt, createIndexROStmt} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, util.NewStoreError("Open", err)
		}
	}
	return &Store{db: db, state: StateGood, keygen: GenerateKey}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// State returns the state left by the last operation.
func (s *Store) State() State { return s.state }

// Good reports whether the last operation succeeded.
func (s *Store) Good() bool { return s.state == StateGood }

// Fail reports whether the last operation failed.
func (s *Store) Fail() bool { return !s.Good() }

// CreateConfig inserts a new configuration named name with an empty
// document and freshly generated keys. A unique-constraint collision
// regenerates both keys and retries; a collision on the last attempt is
// returned as a store failure.
func (s *Store) CreateConfig(name string) (CreateResult, error) {
	doc := protocol.NewDocument(name)
	text, err := json.Marshal(doc)
	if err != nil {
		s.state = StateFatal
		return CreateResult{}, util.NewStoreError("CreateConfig", err)
	}

	var lastErr error
	for attempt := 0; attempt < maximumRetries; attempt++ {
		key := s.keygen(name)
		roKey := s.keygen(name)
		res, err := s.db.Exec(insertConfigStmt, string(text), key, roKey)
		if err != nil {
			lastErr = err
			s.state = StateError
			var serr sqlite3.Error
			if errors.As(err, &serr) {
				util.WithField("attempt", attempt).Debugf("store: CreateConfig insert failed: %v", err)
				continue
			}
			s.state = StateFatal
			break
		}

		id, err := res.LastInsertId()
		if err != nil {
			s.state = StateFatal
			return CreateResult{}, util.NewStoreError("CreateConfig", err)
		}
		result := CreateResult{ConfigID: uint64(id)}
		row := s.db.QueryRow(selectKeysByIDStmt, id)
		if err := row.Scan(&result.ConfigKey, &result.ReadonlyKey); err != nil {
			s.state = StateError
			return CreateResult{}, util.NewStoreError("CreateConfig", err)
		}
		s.state = StateGood
		return result, nil
	}
	return CreateResult{}, util.NewStoreError("CreateConfig", lastErr)
}

// GetConfigIDByKey resolves an access key (read-write or read-only) to the
// persistent configuration id, reporting which kind of key matched.
func (s *Store) GetConfigIDByKey(key string) (id uint64, readonly bool, err error) {
	n, err := s.count(countByKeyStmt, key, key)
	if err != nil {
		s.state = StateError
		return 0, false, util.NewStoreError("GetConfigIDByKey", err)
	}
	if n == 0 {
		s.state = StateUnknownKey
		return 0, false, fmt.Errorf("GetConfigIDByKey: %w", util.ErrUnknownKey)
	}

	nw, err := s.count(countByWriteKeyStmt, key)
	if err != nil {
		s.state = StateError
		return 0, false, util.NewStoreError("GetConfigIDByKey", err)
	}
	if err := s.db.QueryRow(selectIDByKeyStmt, key, key).Scan(&id); err != nil {
		s.state = StateError
		return 0, false, util.NewStoreError("GetConfigIDByKey", err)
	}
	s.state = StateGood
	return id, nw == 0, nil
}

// GetConfigName returns the CONFIG_NAME field of the stored document.
func (s *Store) GetConfigName(id uint64) (string, error) {
	doc, err := s.GetConfig(id)
	if err != nil {
		return "", err
	}
	return doc.Name, nil
}

// GetConfig loads and parses the document of the given configuration.
func (s *Store) GetConfig(id uint64) (*protocol.Document, error) {
	if err := s.requireRow(countByIDStmt, id); err != nil {
		return nil, err
	}
	var text string
	if err := s.db.QueryRow(selectTextByIDStmt, id).Scan(&text); err != nil {
		s.state = StateError
		return nil, util.NewStoreError("GetConfig", err)
	}
	var doc protocol.Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		s.state = StateFatal
		return nil, util.NewStoreError("GetConfig", err)
	}
	s.state = StateGood
	return &doc, nil
}

// UpdateConfig persists doc as the document of the given configuration.
func (s *Store) UpdateConfig(id uint64, doc *protocol.Document) error {
	if err := s.requireRow(countByIDStmt, id); err != nil {
		return err
	}
	text, err := json.Marshal(doc)
	if err != nil {
		s.state = StateFatal
		return util.NewStoreError("UpdateConfig", err)
	}
	if _, err := s.db.Exec(updateTextByIDStmt, string(text), id); err != nil {
		s.state = StateError
		return util.NewStoreError("UpdateConfig", err)
	}
	s.state = StateGood
	return nil
}

// IncludeConfig appends src to dst's includes list (sorted, deduplicated),
// persists the document and returns the resulting list length.
func (s *Store) IncludeConfig(dst, src uint64) (int, error) {
	if err := s.requireRow(countByIDStmt, dst); err != nil {
		return 0, err
	}
	if err := s.requireRow(countByIDStmt, src); err != nil {
		return 0, err
	}
	doc, err := s.GetConfig(dst)
	if err != nil {
		return 0, err
	}
	n := doc.AddInclude(src)
	if err := s.UpdateConfig(dst, doc); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) count(stmt string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRow(stmt, args...).Scan(&n)
	return n, err
}

// requireRow lifts a zero-row count to ErrUnknownID.
func (s *Store) requireRow(stmt string, args ...any) error {
	n, err := s.count(stmt, args...)
	if err != nil {
		s.state = StateError
		return util.NewStoreError("requireRow", err)
	}
	if n == 0 {
		s.state = StateUnknownID
		return fmt.Errorf("no row for %v: %w", args, util.ErrUnknownID)
	}
	return nil
}
