// Package inmemdb implements the domain repositories in memory, for local development & tests.
package inmemdb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/payment"
	"github.com/trezcool/admitflow/core/user"
)

type (
	tables struct {
		users      map[string]user.User
		leads      map[string]lead.Lead
		activities []lead.ActivityLog
		records    []comms.CommunicationRecord
		templates  map[string]comms.MessageTemplate
		courses    map[string]catalog.Course
		branches   map[string]catalog.Branch
		fees       map[string]catalog.FeeStructure
		joinings   map[string]joining.Joining // by lead ID
		admissions map[string]joining.Admission
		gateways   map[string]payment.GatewayConfig
		counters   map[string]int
	}

	// DB holds every table behind one lock; lead deletes cascade across tables.
	DB struct {
		mutex sync.RWMutex
		t     *tables

		txMutex sync.Mutex // held by the running unit of work, or by a write outside one
	}

	txKey struct{}
)

func newTables() *tables {
	return &tables{
		users:      make(map[string]user.User),
		leads:      make(map[string]lead.Lead),
		templates:  make(map[string]comms.MessageTemplate),
		courses:    make(map[string]catalog.Course),
		branches:   make(map[string]catalog.Branch),
		fees:       make(map[string]catalog.FeeStructure),
		joinings:   make(map[string]joining.Joining),
		admissions: make(map[string]joining.Admission),
		gateways:   make(map[string]payment.GatewayConfig),
		counters:   make(map[string]int),
	}
}

func Open() *DB {
	return &DB{t: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t = newTables()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		users:      copyMap(t.users),
		leads:      copyMap(t.leads),
		activities: append([]lead.ActivityLog(nil), t.activities...),
		records:    append([]comms.CommunicationRecord(nil), t.records...),
		templates:  copyMap(t.templates),
		courses:    copyMap(t.courses),
		branches:   copyMap(t.branches),
		fees:       copyMap(t.fees),
		joinings:   copyMap(t.joinings),
		admissions: copyMap(t.admissions),
		gateways:   copyMap(t.gateways),
		counters:   copyMap(t.counters),
	}
}

// inTx reports whether ctx carries a unit of work opened on db.
func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// lockWrite takes the write lock and returns its release. Writes outside a unit of work
// also wait for the running one, so a rollback never discards them.
func (db *DB) lockWrite(ctx context.Context) func() {
	if db.inTx(ctx) {
		db.mutex.Lock()
		return db.mutex.Unlock
	}
	db.txMutex.Lock()
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		db.txMutex.Unlock()
	}
}

// Transactor serialises units of work and restores the tables when one fails.
// Nested calls join the outer unit of work. Reads are not isolated.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (tx *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx.db.inTx(ctx) {
		return fn(ctx)
	}

	tx.db.txMutex.Lock()
	defer tx.db.txMutex.Unlock()

	tx.db.mutex.RLock()
	snapshot := tx.db.t.clone()
	tx.db.mutex.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, tx.db)); err != nil {
		tx.db.mutex.Lock()
		tx.db.t = snapshot
		tx.db.mutex.Unlock()
		return err
	}
	return nil
}

type Sequencer struct {
	db *DB
}

var _ core.Sequencer = (*Sequencer)(nil)

func NewSequencer(db *DB) *Sequencer {
	return &Sequencer{db: db}
}

func (s *Sequencer) Next(ctx context.Context, key string) (int, error) {
	defer s.db.lockWrite(ctx)()
	s.db.t.counters[key]++
	return s.db.t.counters[key], nil
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	return 0
}
