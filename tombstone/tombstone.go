// Package tombstone implements range and row deletions: markers that hide
// columns from a visible row when the marker's timestamp dominates the
// column's, the same last-write-wins rule the row format itself uses.
package tombstone

import (
	"fmt"

	"github.com/hugetable/hugetable/clock"
	"github.com/hugetable/hugetable/primitives"
	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
)

// Flags records which bounds a Tombstone carries and their inclusivity.
type Flags uint8

const (
	flagHasLowerBound        Flags = 1 << 0
	flagLowerBoundInclusive  Flags = 1 << 1
	flagHasUpperBound        Flags = 1 << 2
	flagUpperBoundInclusive  Flags = 1 << 3
)

// HasLowerBound reports whether the tombstone carries a lower bound.
func (f Flags) HasLowerBound() bool { return f&flagHasLowerBound != 0 }

// LowerBoundInclusive reports whether the lower bound is closed.
func (f Flags) LowerBoundInclusive() bool { return f&flagLowerBoundInclusive != 0 }

// HasUpperBound reports whether the tombstone carries an upper bound.
func (f Flags) HasUpperBound() bool { return f&flagHasUpperBound != 0 }

// UpperBoundInclusive reports whether the upper bound is closed.
func (f Flags) UpperBoundInclusive() bool { return f&flagUpperBoundInclusive != 0 }

// PartialClusterKey is a byte sequence of concatenated, encoded primary-key
// prefix values (partition key columns followed by a leading run of
// clustering columns), used as a tombstone's range bound.
type PartialClusterKey struct {
	Schema *schema.TableSchema
	Buf    []byte
}

// NewPartialClusterKey encodes values against schema's pk_columns, in
// order, as a PartialClusterKey bound. values need not cover every pk
// column; the comparison against a row stops once the prefix is exhausted.
func NewPartialClusterKey(s *schema.TableSchema, values ...row.ColumnValue) PartialClusterKey {
	if len(values) > len(s.PKColumns) {
		panic("tombstone: more prefix values than primary-key columns")
	}

	bb := make([]byte, 0, len(values)*8)
	sink := &sliceSink{buf: bb}
	for i, v := range values {
		encodeValue(sink, s.PKColumns[i].Type, v)
	}

	return PartialClusterKey{Schema: s, Buf: sink.buf}
}

type sliceSink struct{ buf []byte }

func (s *sliceSink) MustWrite(data []byte) { s.buf = append(s.buf, data...) }
func (s *sliceSink) MustWriteByte(b byte)  { s.buf = append(s.buf, b) }

func encodeValue(dst primitives.Sink, tpe schema.ColumnType, v row.ColumnValue) {
	switch tpe {
	case schema.Bool:
		primitives.EncodeBool(dst, v.Bool)
	case schema.Int32:
		primitives.EncodeZigzagI32(dst, v.Int32)
	case schema.BigInt:
		primitives.EncodeZigzagI64(dst, v.BigInt)
	case schema.Text:
		primitives.EncodeUTF8(dst, v.Text)
	}
}

func decodeValue(buf []byte, offs *int, tpe schema.ColumnType) row.ColumnValue {
	switch tpe {
	case schema.Bool:
		v, err := primitives.DecodeBool(buf, offs)
		must(err)
		return row.BoolValue(v)
	case schema.Int32:
		v, err := primitives.DecodeZigzagI32(buf, offs)
		must(err)
		return row.Int32Value(v)
	case schema.BigInt:
		v, err := primitives.DecodeZigzagI64(buf, offs)
		must(err)
		return row.BigIntValue(v)
	case schema.Text:
		v, err := primitives.DecodeUTF8(buf, offs)
		must(err)
		return row.TextValue(v)
	default:
		panic(fmt.Sprintf("tombstone: unknown column type %d", tpe))
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// CompareTo compares the prefix against r's primary-key columns of the
// matching schema, in pk_columns order, returning a negative, zero, or
// positive result at the first differing column. A prefix shorter than
// the full primary key compares Equal once exhausted.
func (k PartialClusterKey) CompareTo(r row.View) int {
	if k.Schema != r.Schema {
		panic("tombstone: partial cluster key schema does not match row schema")
	}

	offs := 0
	for _, colSchema := range k.Schema.PKColumns {
		if offs >= len(k.Buf) {
			break
		}

		bound := decodeValue(k.Buf, &offs, colSchema.Type)

		rowCol, ok := r.ReadColumnByID(colSchema.ID)
		if !ok || rowCol.IsNull {
			panic("tombstone: primary key column missing or null in row")
		}

		if cmp := bound.Compare(rowCol.Value); cmp != 0 {
			return cmp
		}
	}

	return 0
}

// NewRowTombstone builds a tombstone matching exactly the row whose
// primary key equals pk, with both bounds closed.
func NewRowTombstone(s *schema.TableSchema, ts clock.MergeTimestamp, pk PartialClusterKey) Tombstone {
	return Tombstone{
		Schema:     s,
		Timestamp:  ts,
		Flags:      flagHasLowerBound | flagLowerBoundInclusive | flagHasUpperBound | flagUpperBoundInclusive,
		LowerBound: pk,
		UpperBound: pk,
	}
}

// NewRangeTombstone builds a tombstone over [lower, upper]; either bound may
// be nil to leave that side open, and each present bound's inclusivity is
// set independently.
func NewRangeTombstone(s *schema.TableSchema, ts clock.MergeTimestamp, lower *PartialClusterKey, lowerInclusive bool, upper *PartialClusterKey, upperInclusive bool) Tombstone {
	result := Tombstone{Schema: s, Timestamp: ts}

	var flags Flags
	if lower != nil {
		flags |= flagHasLowerBound
		if lowerInclusive {
			flags |= flagLowerBoundInclusive
		}
		result.LowerBound = *lower
	}
	if upper != nil {
		flags |= flagHasUpperBound
		if upperInclusive {
			flags |= flagUpperBoundInclusive
		}
		result.UpperBound = *upper
	}
	result.Flags = flags

	return result
}

// Tombstone deletes a (possibly open) range of clustering positions within
// a partition at a given timestamp; a tombstone with no bounds at all
// matches every row in the partition.
type Tombstone struct {
	Schema     *schema.TableSchema
	Timestamp  clock.MergeTimestamp
	Flags      Flags
	LowerBound PartialClusterKey
	UpperBound PartialClusterKey
}

// Matches reports whether r falls within the tombstone's bounds.
func (ts Tombstone) Matches(r row.View) bool {
	if ts.Flags.HasLowerBound() {
		switch cmp := ts.LowerBound.CompareTo(r); {
		case cmp > 0:
			return false
		case cmp == 0 && !ts.Flags.LowerBoundInclusive():
			return false
		}
	}

	if ts.Flags.HasUpperBound() {
		switch cmp := ts.UpperBound.CompareTo(r); {
		case cmp < 0:
			return false
		case cmp == 0 && !ts.Flags.UpperBoundInclusive():
			return false
		}
	}

	return true
}

// Apply returns r's columns with any column dropped whose value is hidden
// by a matching tombstone: a tombstone hides a column when the tombstone's
// timestamp is greater than or equal to the column's, the same rule the
// row format itself uses for last-write-wins.
func Apply(r row.View, stones []Tombstone) []row.ColumnData {
	var matching []Tombstone
	for _, ts := range stones {
		if ts.Matches(r) {
			matching = append(matching, ts)
		}
	}

	if len(matching) == 0 {
		var all []row.ColumnData
		for cd := range r.Columns() {
			all = append(all, cd)
		}
		return all
	}

	var visible []row.ColumnData
	for cd := range r.Columns() {
		hidden := false
		for _, ts := range matching {
			if ts.Timestamp >= cd.Timestamp {
				hidden = true
				break
			}
		}
		if !hidden {
			visible = append(visible, cd)
		}
	}

	return visible
}
