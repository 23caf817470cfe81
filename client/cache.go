package client

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

var cardKeyPrefix = []byte("card:")

// Cache is the observer's local copy of the board, persisted so a restart can
// show cards before the first resync completes. Corrupt entries are skipped,
// never fatal.
type Cache struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenCache opens (or creates) the badger-backed cache at dir.
func OpenCache(dir string, logger *zap.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cardKey(tripID string) []byte {
	return append(append([]byte{}, cardKeyPrefix...), []byte(tripID)...)
}

// LoadAll reads every cached card.
func (c *Cache) LoadAll() (map[string]board.Card, error) {
	cards := make(map[string]board.Card)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = cardKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var card board.Card
				if err := json.Unmarshal(val, &card); err != nil {
					c.logger.Warn("Skipping corrupt cached card", zap.Error(err))
					return nil
				}
				if card.TripID != "" {
					cards[card.TripID] = card
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// Put stores one card.
func (c *Cache) Put(card board.Card) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cardKey(card.TripID), raw)
	})
}

// Delete removes one card.
func (c *Cache) Delete(tripID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cardKey(tripID))
	})
}

// ReplaceAll rewrites the cache to exactly the given card set, used after a
// full resync.
func (c *Cache) ReplaceAll(cards map[string]board.Card) error {
	return c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = cardKeyPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		stale := make([][]byte, 0)
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, card := range cards {
			raw, err := json.Marshal(card)
			if err != nil {
				return err
			}
			if err := txn.Set(cardKey(card.TripID), raw); err != nil {
				return err
			}
		}
		return nil
	})
}
