package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "journal/"

// badgerRepository is the BadgerDB implementation of the EventRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens a BadgerDB database at dbPath.
// An empty dbPath opens an in-memory database, which is what tests use.
func NewBadgerRepository(dbPath string) (EventRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	// 关闭 badger 自带日志，错误仍通过返回值传递
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

// 序号补零，保证按字节序迭代即按 Seq 排序
func entryKey(session string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", keyPrefix, session, seq))
}

func sessionPrefix(session string) []byte {
	return []byte(keyPrefix + session + "/")
}

// Append marshals the entry into JSON and stores it under its session/seq key.
func (r *badgerRepository) Append(session string, entry *Entry) error {
	if session == "" {
		return errors.New("session id is empty")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(session, entry.Seq), data)
	})
}

// List iterates the session prefix in key order.
func (r *badgerRepository) List(session string) ([]Entry, error) {
	var entries []Entry
	prefix := sessionPrefix(session)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(val) == 0 {
				return errors.New("journal entry is empty in database")
			}
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
