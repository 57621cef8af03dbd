// Package dispatch implements C7 (the command dispatcher) and C8
// (worker-session state): binding parsed RESP token arrays to pkg/store
// operations on the session's currently-selected keyspace.
//
// © 2025 rescache authors. MIT License.
package dispatch

import (
	"time"

	"github.com/sergz72/rescache/pkg/store"
)

const defaultDatabase = "0"

// Session is the per-connection worker-session state (C8): the
// currently-selected keyspace, bound once and rebound only by
// SELECT/CREATEDB/LOADDB.
type Session struct {
	dir       *store.Directory
	dbName    string
	keyspace  *store.Keyspace
	startTime time.Time
}

// NewSession opens a session against dir, starting in database "0" per
// spec.md §4.8.
func NewSession(dir *store.Directory) (*Session, error) {
	s := &Session{dir: dir, startTime: time.Now()}
	ks, err := dir.Select(defaultDatabase)
	if err != nil {
		return nil, err
	}
	s.dbName = defaultDatabase
	s.keyspace = ks
	return s, nil
}

// DBName reports the currently-selected database name.
func (s *Session) DBName() string { return s.dbName }

func (s *Session) selectDB(name string) error {
	ks, err := s.dir.Select(name)
	if err != nil {
		return err
	}
	s.dbName = name
	s.keyspace = ks
	return nil
}

func (s *Session) createDB(name string) error {
	ks, err := s.dir.Create(name)
	if err != nil {
		return err
	}
	s.dbName = name
	s.keyspace = ks
	return nil
}

func (s *Session) loadDB(name string) error {
	ks, err := s.dir.Load(name)
	if err != nil {
		return err
	}
	s.dbName = name
	s.keyspace = ks
	return nil
}

// touch records the current keyspace as most-recently-accessed at the
// directory level. Every handler that reads or mutates the current keyspace
// by key or size (GET, SET, DEL, HSET, HGET, HGETALL, HDEL, DBSIZE, FLUSHDB)
// calls this once; FLUSHALL touches through Directory.FlushAll instead.
func (s *Session) touch() {
	s.dir.Touch(s.dbName)
}
