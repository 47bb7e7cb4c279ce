// Package store persists work items and the run ledger in a bbolt database.
//
// Work items live in the work_items bucket keyed by id; run records live in
// the append-only runs bucket keyed by run id. All values are JSON.
//
// [BoltRepository] offers the conditional [BoltRepository.Update] used to
// serialise status transitions and [BoltRepository.CommitStep], which writes
// a work item update and its ledger entry in one transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

var (
	bucketWorkItems = []byte("work_items")
	bucketRuns      = []byte("runs")
)

// MutateFunc changes a work item inside an update transaction. Returning an
// error aborts the transaction.
type MutateFunc func(item *workitem.WorkItem) error

// BoltRepository is the bbolt-backed repository and run ledger.
type BoltRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*BoltRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SetClock overrides the clock used for timestamps.
func (r *BoltRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Close closes the database.
func (r *BoltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func initSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketWorkItems); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return err
		}
		return nil
	})
}

// Create stores a new work item. Empty ids are assigned, a zero status
// becomes draft and blocks without ids receive one.
func (r *BoltRepository) Create(ctx context.Context, item *workitem.WorkItem) (*workitem.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next := item.Clone()
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	if next.Status == "" {
		next.Status = status.StatusDraft
	}
	if !next.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", next.Status)
	}
	for i := range next.Blocks {
		if next.Blocks[i].ID == "" {
			next.Blocks[i].ID = uuid.NewString()
		}
	}
	now := r.now()
	next.CreatedAt = now
	next.UpdatedAt = now

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkItems)
		if b.Get([]byte(next.ID)) != nil {
			return fmt.Errorf("%w: %s", workitem.ErrExists, next.ID)
		}
		return b.Put([]byte(next.ID), raw)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Get returns the work item with the given id or [workitem.ErrNotFound].
func (r *BoltRepository) Get(ctx context.Context, id string) (*workitem.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *workitem.WorkItem
	err := r.db.View(func(tx *bolt.Tx) error {
		item, err := getItem(tx, id)
		out = item
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all work items, oldest first.
func (r *BoltRepository) List(ctx context.Context) ([]*workitem.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*workitem.WorkItem, 0)
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkItems).ForEach(func(_, v []byte) error {
			var item workitem.WorkItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn to the stored work item.
//
// When expected is non-empty the update only happens if the persisted
// status still equals expected; otherwise [workitem.ErrConflict] is returned
// and nothing is written.
func (r *BoltRepository) Update(ctx context.Context, id string, expected status.Status, fn MutateFunc) (*workitem.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *workitem.WorkItem
	err := r.db.Update(func(tx *bolt.Tx) error {
		item, err := r.mutate(tx, id, expected, fn)
		out = item
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendRun appends rec to the ledger and returns its id. An empty id is
// assigned; an existing id is rejected since the ledger is never edited.
func (r *BoltRepository) AppendRun(ctx context.Context, rec workitem.RunRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var id string
	err := r.db.Update(func(tx *bolt.Tx) error {
		var err error
		id, err = r.putRun(tx, rec)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CommitStep applies fn to the work item and appends rec in a single
// transaction. Either both are persisted or neither is.
func (r *BoltRepository) CommitStep(ctx context.Context, id string, expected status.Status, fn MutateFunc, rec workitem.RunRecord) (*workitem.WorkItem, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	var (
		out   *workitem.WorkItem
		runID string
	)
	err := r.db.Update(func(tx *bolt.Tx) error {
		item, err := r.mutate(tx, id, expected, fn)
		if err != nil {
			return err
		}
		rid, err := r.putRun(tx, rec)
		if err != nil {
			return err
		}
		out, runID = item, rid
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, runID, nil
}

// QueryRuns returns ledger records matching filter, most recent first.
func (r *BoltRepository) QueryRuns(ctx context.Context, filter workitem.RunFilter) ([]workitem.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]workitem.RunRecord, 0)
	err := r.db.View(func(tx *bolt.Tx) error {
		var owned map[string]bool
		if filter.OwnerID != "" {
			owned = make(map[string]bool)
			err := tx.Bucket(bucketWorkItems).ForEach(func(k, v []byte) error {
				var item workitem.WorkItem
				if err := json.Unmarshal(v, &item); err != nil {
					return err
				}
				if item.OwnerID == filter.OwnerID {
					owned[string(k)] = true
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return tx.Bucket(bucketRuns).ForEach(func(_, v []byte) error {
			var rec workitem.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !filter.Match(rec) {
				return nil
			}
			if owned != nil && !owned[rec.WorkItemID] {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func getItem(tx *bolt.Tx, id string) (*workitem.WorkItem, error) {
	raw := tx.Bucket(bucketWorkItems).Get([]byte(id))
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", workitem.ErrNotFound, id)
	}
	var item workitem.WorkItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode work item %s: %w", id, err)
	}
	return &item, nil
}

func (r *BoltRepository) mutate(tx *bolt.Tx, id string, expected status.Status, fn MutateFunc) (*workitem.WorkItem, error) {
	item, err := getItem(tx, id)
	if err != nil {
		return nil, err
	}
	if expected != "" && item.Status != expected {
		return nil, fmt.Errorf("%w: expected %s, found %s", workitem.ErrConflict, expected, item.Status)
	}
	if fn != nil {
		if err := fn(item); err != nil {
			return nil, err
		}
	}
	if !item.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", item.Status)
	}
	item.ID = id
	item.UpdatedAt = r.now()
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	if err := tx.Bucket(bucketWorkItems).Put([]byte(id), raw); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *BoltRepository) putRun(tx *bolt.Tx, rec workitem.RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	b := tx.Bucket(bucketRuns)
	if b.Get([]byte(rec.ID)) != nil {
		return "", fmt.Errorf("run %s already recorded", rec.ID)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := b.Put([]byte(rec.ID), raw); err != nil {
		return "", err
	}
	return rec.ID, nil
}
