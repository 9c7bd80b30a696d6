package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("state")

// BoltDB is a single-file persistent store backed by bbolt. All keys live in
// one bucket; batches map onto a single read-write transaction.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates) the bbolt file at path.
func NewBoltDB(path string, options *bolt.Options) (*BoltDB, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, value)
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(stateBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(stateBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(key)
	})
}

func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b.db}
}

// Close releases the underlying Bolt database handle.
func (b *BoltDB) Close() {
	if b == nil || b.db == nil {
		return
	}
	_ = b.db.Close()
}

type boltBatch struct {
	db  *bolt.DB
	ops []memOp
}

func (b *boltBatch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, memOp{key: string(key), value: append([]byte(nil), value...)})
}

func (b *boltBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: string(key), delete: true})
}

func (b *boltBatch) Len() int { return len(b.ops) }

func (b *boltBatch) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		for _, op := range b.ops {
			if op.delete {
				if err := bucket.Delete([]byte(op.key)); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put([]byte(op.key), op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}
