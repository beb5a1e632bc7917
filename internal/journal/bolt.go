package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// Bolt stores events in a local bbolt file, keyed by insertion sequence.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the journal file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s failed", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create events bucket failed")
	}
	return &Bolt{db: db}, nil
}

// Append writes one event.
func (b *Bolt) Append(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event failed")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(eventsBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, data)
	})
}

// Events returns every stored event in insertion order.
func (b *Bolt) Events() ([]Event, error) {
	var out []Event
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(_, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, errors.Wrap(err, "read events failed")
}

// Close closes the file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
