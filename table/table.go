// Package table is the façade that wires a memtable, a growing list of
// flushed SSTables, and a set of active tombstones into one read/write
// surface: writes land in the memtable, reads merge the memtable with
// every SSTable view and apply tombstones on top.
package table

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hugetable/hugetable/clock"
	"github.com/hugetable/hugetable/errs"
	"github.com/hugetable/hugetable/memtable"
	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
	"github.com/hugetable/hugetable/sstable"
	"github.com/hugetable/hugetable/tombstone"
)

// Table is the single entry point a collaborator (a query layer, a
// replication link, a CLI) constructs against: it owns one schema's
// memtable, its flushed SSTables, and its active tombstones.
type Table struct {
	schema *schema.TableSchema
	config *sstable.TableConfig
	clock  clock.Clock

	mu sync.RWMutex
	mt *memtable.MemTable

	sstables atomic.Pointer[[]*sstable.SsTable]

	tombstonesMu sync.RWMutex
	tombstones   []tombstone.Tombstone
}

// New constructs an empty Table over schema s, persisting flushed SSTables
// under config and stamping writes using clk.
func New(s *schema.TableSchema, config *sstable.TableConfig, clk clock.Clock) *Table {
	t := &Table{
		schema: s,
		config: config,
		clock:  clk,
		mt:     memtable.New(s),
	}

	empty := make([]*sstable.SsTable, 0)
	t.sstables.Store(&empty)

	return t
}

// Insert assembles columns into a row stamped with the table's clock (any
// column with a zero Timestamp takes the current time; a caller providing
// its own timestamps, e.g. during replication, is left untouched) and adds
// it to the memtable, merging with any existing row sharing its primary
// key.
func (t *Table) Insert(columns []row.ColumnData) error {
	now := t.clock.Now()
	stamped := make([]row.ColumnData, len(columns))
	for i, c := range columns {
		if c.Timestamp == 0 {
			c.Timestamp = now
		}
		stamped[i] = c
	}

	r := row.Assemble(t.schema, stamped)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.mt.Add(r)

	return nil
}

// Get looks up pk across the memtable and every flushed SSTable, merging
// every row view found (highest timestamp per column wins) and then
// dropping columns hidden by an active tombstone. Returns (nil, false, nil)
// on a clean miss.
func (t *Table) Get(pk *row.DetachedRow) (*row.DetachedRow, bool, error) {
	t.mu.RLock()
	memRow, memOK := t.mt.Get(pk)
	t.mu.RUnlock()

	tables := *t.sstables.Load()

	var merged *row.DetachedRow
	if memOK {
		merged = memRow
	}

	for _, tbl := range tables {
		found, ok, err := tbl.FindByFullPK(pk.View())
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}

		if merged == nil {
			merged = row.Assemble(t.schema, collectColumns(found))
			continue
		}
		merged = merged.View().Merge(found)
	}

	if merged == nil {
		return nil, false, nil
	}

	t.tombstonesMu.RLock()
	stones := append([]tombstone.Tombstone(nil), t.tombstones...)
	t.tombstonesMu.RUnlock()

	visible := tombstone.Apply(merged.View(), stones)
	if len(visible) == 0 {
		return nil, false, nil
	}

	return row.Assemble(t.schema, visible), true, nil
}

func collectColumns(v row.View) []row.ColumnData {
	var cols []row.ColumnData
	for cd := range v.Columns() {
		cols = append(cols, cd)
	}
	return cols
}

// DeleteRow appends a tombstone that matches exactly the row identified by
// pk's full primary key, timestamped with the table's clock.
func (t *Table) DeleteRow(pk *row.DetachedRow) {
	full := tombstone.NewPartialClusterKey(t.schema, pkValues(t.schema, pk)...)
	t.appendTombstone(tombstone.NewRowTombstone(t.schema, t.clock.Now(), full))
}

// DeleteRange appends a tombstone matching every row whose clustering
// prefix falls within [lower, upper], inclusivity controlled per bound.
func (t *Table) DeleteRange(lower, upper *tombstone.PartialClusterKey, lowerInclusive, upperInclusive bool) {
	ts := tombstone.NewRangeTombstone(t.schema, t.clock.Now(), lower, lowerInclusive, upper, upperInclusive)
	t.appendTombstone(ts)
}

func (t *Table) appendTombstone(ts tombstone.Tombstone) {
	t.tombstonesMu.Lock()
	defer t.tombstonesMu.Unlock()
	t.tombstones = append(t.tombstones, ts)
}

func pkValues(s *schema.TableSchema, r *row.DetachedRow) []row.ColumnValue {
	values := make([]row.ColumnValue, 0, len(s.PKColumns))
	for _, colSchema := range s.PKColumns {
		cd, ok := r.View().ReadColumnByID(colSchema.ID)
		if !ok || cd.IsNull {
			panic("table: primary key column missing or null")
		}
		values = append(values, cd.Value)
	}
	return values
}

// Flush drains the current memtable into a new SSTable, swaps it into the
// table's SSTable list, and installs a fresh empty memtable in its place.
// Compaction of multiple SSTables into one is not implemented.
func (t *Table) Flush(ctx context.Context) error {
	t.mu.Lock()
	draining := t.mt
	t.mt = memtable.New(t.schema)
	t.mu.Unlock()

	if draining.Len() == 0 {
		return nil
	}

	rows := func(yield func(row.View) bool) {
		draining.All(func(r *row.DetachedRow) bool {
			select {
			case <-ctx.Done():
				return false
			default:
			}
			return yield(r.View())
		})
	}

	newTable, err := sstable.Create(t.config, t.schema, rows)
	if err != nil {
		return fmt.Errorf("%w: flushing memtable: %v", errs.ErrIO, err)
	}

	for {
		old := t.sstables.Load()
		next := append(append([]*sstable.SsTable(nil), *old...), newTable)
		if t.sstables.CompareAndSwap(old, &next) {
			break
		}
	}

	return nil
}

// Close closes every flushed SSTable's file handles and mmaps.
func (t *Table) Close() error {
	var firstErr error
	for _, tbl := range *t.sstables.Load() {
		if err := tbl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
