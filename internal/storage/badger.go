package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"linkboard/internal/domain"
)

// defaultSite names the unscoped list in keys.
const defaultSite = "-"

// BadgerRepository implements SnapshotRepository using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "snapshot_repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Debug("BadgerDB closed")
	return nil
}

// sitePrefix is the key prefix of every link stored for a site.
// Format: site:{siteID}:link:
func sitePrefix(siteID string) []byte {
	if siteID == "" {
		siteID = defaultSite
	}
	return []byte(fmt.Sprintf("site:%s:link:", siteID))
}

// linkKey is sitePrefix followed by the zero-padded link id, so keys sort
// by id.
func linkKey(siteID string, id int64) []byte {
	return append(sitePrefix(siteID), []byte(fmt.Sprintf("%020d", id))...)
}

// SaveSnapshot deletes the site's previous snapshot and writes links in one
// transaction.
func (r *BadgerRepository) SaveSnapshot(ctx context.Context, siteID string, links []domain.Link) error {
	log := r.log.WithFields(logrus.Fields{
		"management_site_id": siteID,
		"link_count":         len(links),
	})

	prefix := sitePrefix(siteID)
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, link := range links {
			value, err := json.Marshal(link)
			if err != nil {
				return fmt.Errorf("failed to marshal link %d: %w", link.ID, err)
			}
			if err := txn.SetEntry(badger.NewEntry(linkKey(siteID, link.ID), value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to save snapshot")
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Debug("Snapshot saved")
	return nil
}

// GetSnapshot returns the stored list for siteID.
func (r *BadgerRepository) GetSnapshot(ctx context.Context, siteID string) ([]domain.Link, error) {
	log := r.log.WithField("management_site_id", siteID)

	links := []domain.Link{}
	prefix := sitePrefix(siteID)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var link domain.Link
				if err := json.Unmarshal(val, &link); err != nil {
					return fmt.Errorf("failed to unmarshal link data for key %s: %w", string(item.Key()), err)
				}
				links = append(links, link)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to read snapshot")
		return nil, fmt.Errorf("failed to get snapshot for site %q: %w", siteID, err)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].ID > links[j].ID
	})
	return links, nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
