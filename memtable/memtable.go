// Package memtable holds recently written rows in an ordered, in-memory set
// ahead of being flushed to an SSTable.
package memtable

import (
	"github.com/google/btree"

	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
)

const btreeDegree = 32

// MemTable is an ordered-by-primary-key set of row.DetachedRow, with
// merge-on-collision semantics: adding a row whose primary key already
// exists replaces it with the last-write-wins merge of old and new.
type MemTable struct {
	schema *schema.TableSchema
	data   *btree.BTreeG[*row.DetachedRow]
	size   int
}

func less(a, b *row.DetachedRow) bool {
	return row.ComparePK(a, b) < 0
}

// New constructs an empty MemTable for the given schema.
func New(s *schema.TableSchema) *MemTable {
	return &MemTable{
		schema: s,
		data:   btree.NewG[*row.DetachedRow](btreeDegree, less),
	}
}

// Add inserts r, merging with any existing row sharing r's primary key
// under last-write-wins (via row.View.Merge).
func (m *MemTable) Add(r *row.DetachedRow) {
	if prev, ok := m.data.Get(r); ok {
		m.size -= len(prev.Buf)
		r = prev.View().Merge(r.View())
	}

	m.size += len(r.Buf)
	m.data.ReplaceOrInsert(r)
}

// Get looks up the row sharing pk's primary key, if any.
func (m *MemTable) Get(pk *row.DetachedRow) (*row.DetachedRow, bool) {
	return m.data.Get(pk)
}

// Size returns the total byte size of all rows currently held.
func (m *MemTable) Size() int {
	return m.size
}

// Len returns the number of distinct primary keys currently held.
func (m *MemTable) Len() int {
	return m.data.Len()
}

// All iterates every row in ascending primary-key order.
func (m *MemTable) All(yield func(*row.DetachedRow) bool) {
	m.data.Ascend(func(r *row.DetachedRow) bool {
		return yield(r)
	})
}
