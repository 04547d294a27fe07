// Package row implements the on-buffer row format: the view that reads a
// row's columns out of a byte slice, and DetachedRow, the owned buffer
// produced by Assemble. Rows are strictly append-structured and compress
// the common case where a column's timestamp or expiry matches the row's.
package row

import (
	"fmt"
	"iter"
	"strings"

	"github.com/hugetable/hugetable/clock"
	"github.com/hugetable/hugetable/errs"
	"github.com/hugetable/hugetable/internal/pool"
	"github.com/hugetable/hugetable/primitives"
	"github.com/hugetable/hugetable/schema"
)

// Flags is the single row-header flag byte.
type Flags uint8

const flagRowExpiry Flags = 1 << 0

func newFlags(hasRowExpiry bool) Flags {
	if hasRowExpiry {
		return flagRowExpiry
	}
	return 0
}

// HasRowExpiry reports whether the row header carries a shared expiry.
func (f Flags) HasRowExpiry() bool {
	return f&flagRowExpiry != 0
}

// ColumnFlags is the per-column flag byte.
type ColumnFlags uint8

const (
	columnFlagNull            ColumnFlags = 1 << 0
	columnFlagHasTimestamp    ColumnFlags = 1 << 1
	columnFlagHasColumnExpiry ColumnFlags = 1 << 2
	columnFlagUsesRowExpiry   ColumnFlags = 1 << 3
)

func newColumnFlags(isNull, hasTimestamp, hasColumnExpiry, usesRowExpiry bool) ColumnFlags {
	var f ColumnFlags
	if isNull {
		f |= columnFlagNull
	}
	if hasTimestamp {
		f |= columnFlagHasTimestamp
	}
	if hasColumnExpiry {
		f |= columnFlagHasColumnExpiry
	}
	if usesRowExpiry {
		f |= columnFlagUsesRowExpiry
	}

	return f
}

// IsNull reports whether the column carries no value.
func (f ColumnFlags) IsNull() bool { return f&columnFlagNull != 0 }

// HasColumnTimestamp reports whether a per-column timestamp follows the flags.
func (f ColumnFlags) HasColumnTimestamp() bool { return f&columnFlagHasTimestamp != 0 }

// HasColumnExpiry reports whether a per-column expiry follows the flags.
func (f ColumnFlags) HasColumnExpiry() bool { return f&columnFlagHasColumnExpiry != 0 }

// UsesRowExpiry reports whether the column's expiry is the row's shared expiry.
func (f ColumnFlags) UsesRowExpiry() bool { return f&columnFlagUsesRowExpiry != 0 }

// ValueKind tags the logical type carried by a ColumnValue.
type ValueKind uint8

const (
	BoolKind ValueKind = iota
	Int32Kind
	BigIntKind
	TextKind
)

// ColumnValue is a logical, schema-typed value. Exactly one of the typed
// fields is meaningful, selected by Kind.
type ColumnValue struct {
	Kind   ValueKind
	Bool   bool
	Int32  int32
	BigInt int64
	Text   string
}

// BoolValue constructs a Bool-kinded ColumnValue.
func BoolValue(v bool) ColumnValue { return ColumnValue{Kind: BoolKind, Bool: v} }

// Int32Value constructs an Int32-kinded ColumnValue.
func Int32Value(v int32) ColumnValue { return ColumnValue{Kind: Int32Kind, Int32: v} }

// BigIntValue constructs a BigInt-kinded ColumnValue.
func BigIntValue(v int64) ColumnValue { return ColumnValue{Kind: BigIntKind, BigInt: v} }

// TextValue constructs a Text-kinded ColumnValue.
func TextValue(v string) ColumnValue { return ColumnValue{Kind: TextKind, Text: v} }

// Compare returns -1, 0, or 1 per Go comparison convention. Panics if v and
// other have different Kinds: comparing across column types is a caller
// bug, since a schema fixes one type per column.
func (v ColumnValue) Compare(other ColumnValue) int {
	if v.Kind != other.Kind {
		panic(fmt.Sprintf("row: comparing column values of different kinds (%d vs %d)", v.Kind, other.Kind))
	}

	switch v.Kind {
	case BoolKind:
		if v.Bool == other.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case Int32Kind:
		return cmpOrdered(v.Int32, other.Int32)
	case BigIntKind:
		return cmpOrdered(v.BigInt, other.BigInt)
	case TextKind:
		return strings.Compare(v.Text, other.Text)
	default:
		panic(fmt.Sprintf("row: unknown column value kind %d", v.Kind))
	}
}

func cmpOrdered[T int32 | int64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ColumnData is the logical representation of one column's data within a
// row, with timestamp and expiry resolved from their row-level defaults
// where the on-buffer encoding elided them.
type ColumnData struct {
	ColID     schema.ColumnID
	Timestamp clock.MergeTimestamp
	Expiry    clock.TtlTimestamp
	HasExpiry bool
	Value     ColumnValue
	IsNull    bool
}

// mergeColumns resolves a collision between two same-id columns under the
// last-write-wins rule: the column with the greater timestamp survives;
// equal timestamps across different values are a replay/clock-provisioning
// bug, since MergeTimestamps are expected to be globally unique.
func mergeColumns(a, b ColumnData) ColumnData {
	if a.Timestamp == b.Timestamp && !columnValuesEqual(a, b) {
		panic("row: two columns share a timestamp but differ in value")
	}

	if a.Timestamp >= b.Timestamp {
		return a
	}
	return b
}

func columnValuesEqual(a, b ColumnData) bool {
	if a.IsNull != b.IsNull {
		return false
	}
	if a.IsNull {
		return true
	}
	return a.Value.Compare(b.Value) == 0
}

// View is a read-only reference to a schema plus a row's raw bytes. Its
// lifetime must not outlast the backing buffer (an owned DetachedRow's
// slice, or an SSTable's mmap).
type View struct {
	Schema *schema.TableSchema
	Buf    []byte
}

// NewView wraps buf as a row view against schema s.
func NewView(s *schema.TableSchema, buf []byte) View {
	return View{Schema: s, Buf: buf}
}

// Flags decodes the row header's flag byte.
func (r View) Flags() Flags {
	return Flags(r.Buf[0])
}

// Timestamp decodes the row's shared timestamp.
func (r View) Timestamp() clock.MergeTimestamp {
	offs := 1
	v, err := primitives.DecodeFixedU64(r.Buf, &offs)
	if err != nil {
		panic(fmt.Errorf("row: decoding row timestamp: %w", err))
	}

	return clock.MergeTimestamp(v)
}

// Expiry decodes the row's shared expiry, if the row header declares one.
func (r View) Expiry() (clock.TtlTimestamp, bool) {
	if !r.Flags().HasRowExpiry() {
		return 0, false
	}

	offs := 1 + 8
	v, err := primitives.DecodeFixedU32(r.Buf, &offs)
	if err != nil {
		panic(fmt.Errorf("row: decoding row expiry: %w", err))
	}

	return clock.TtlTimestamp(v), true
}

func (r View) offsStartColumnData() int {
	offs := 1 + 8
	if r.Flags().HasRowExpiry() {
		offs += 4
	}

	return offs
}

func (r View) readColumn(rowTimestamp clock.MergeTimestamp, rowExpiry clock.TtlTimestamp, hasRowExpiry bool, offs *int) (ColumnData, error) {
	colIDByte := r.Buf[*offs]
	*offs++
	colID := schema.ColumnID(colIDByte)

	colFlags := ColumnFlags(r.Buf[*offs])
	*offs++

	timestamp := rowTimestamp
	if colFlags.HasColumnTimestamp() {
		raw, err := primitives.DecodeFixedU64(r.Buf, offs)
		if err != nil {
			return ColumnData{}, fmt.Errorf("column %d timestamp: %w", colID, err)
		}
		timestamp = clock.MergeTimestamp(raw)
	}

	var expiry clock.TtlTimestamp
	hasExpiry := false
	switch {
	case colFlags.UsesRowExpiry():
		expiry, hasExpiry = rowExpiry, hasRowExpiry
	case colFlags.HasColumnExpiry():
		raw, err := primitives.DecodeFixedU32(r.Buf, offs)
		if err != nil {
			return ColumnData{}, fmt.Errorf("column %d expiry: %w", colID, err)
		}
		expiry, hasExpiry = clock.TtlTimestamp(raw), true
	}

	if colFlags.IsNull() {
		return ColumnData{ColID: colID, Timestamp: timestamp, Expiry: expiry, HasExpiry: hasExpiry, IsNull: true}, nil
	}

	colSchema, err := r.Schema.Column(colID)
	if err != nil {
		return ColumnData{}, err
	}

	value, err := decodeValue(r.Buf, offs, colSchema.Type)
	if err != nil {
		return ColumnData{}, fmt.Errorf("column %d value: %w", colID, err)
	}

	return ColumnData{ColID: colID, Timestamp: timestamp, Expiry: expiry, HasExpiry: hasExpiry, Value: value}, nil
}

func decodeValue(buf []byte, offs *int, tpe schema.ColumnType) (ColumnValue, error) {
	switch tpe {
	case schema.Bool:
		v, err := primitives.DecodeBool(buf, offs)
		return BoolValue(v), err
	case schema.Int32:
		v, err := primitives.DecodeZigzagI32(buf, offs)
		return Int32Value(v), err
	case schema.BigInt:
		v, err := primitives.DecodeZigzagI64(buf, offs)
		return BigIntValue(v), err
	case schema.Text:
		v, err := primitives.DecodeUTF8(buf, offs)
		return TextValue(v), err
	default:
		return ColumnValue{}, fmt.Errorf("%w: unknown column type %d", errs.ErrFileIntegrity, tpe)
	}
}

// ReadColumnByID performs a linear scan for col_id, for tests and
// diagnostics; Columns should be preferred for a full traversal.
func (r View) ReadColumnByID(colID schema.ColumnID) (ColumnData, bool) {
	for cd := range r.Columns() {
		if cd.ColID == colID {
			return cd, true
		}
	}

	return ColumnData{}, false
}

// Columns iterates the row's columns in storage order: primary-key columns
// first, in the schema's declared order (the prefix CompareByPK reads
// sequentially), followed by the remaining columns ascending by col_id. It
// resolves each column's timestamp and expiry against the row's defaults.
// The row buffer is assumed well-formed; a decode failure mid-iteration
// panics rather than returning a partial sequence.
func (r View) Columns() iter.Seq[ColumnData] {
	return func(yield func(ColumnData) bool) {
		offs := r.offsStartColumnData()
		rowTimestamp := r.Timestamp()
		rowExpiry, hasRowExpiry := r.Expiry()

		for offs < len(r.Buf) {
			cd, err := r.readColumn(rowTimestamp, rowExpiry, hasRowExpiry, &offs)
			if err != nil {
				panic(err)
			}
			if !yield(cd) {
				return
			}
		}
	}
}

// WriteTo frames the row with a varint length prefix, for writing into an
// SSTable data file.
func (r View) WriteTo(dst primitives.Sink) {
	primitives.EncodeVarintLen(dst, len(r.Buf))
	dst.MustWrite(r.Buf)
}

// CompareByPK compares r and other by each primary-key column of the
// schema in declaration order; descending clustering columns reverse their
// per-column ordering. Comparison stops at the first difference, or
// returns Equal once the first non-PK column is reached. Panics if a
// primary-key column is NULL, which the format forbids by construction.
func (r View) CompareByPK(other View) int {
	offsSelf := r.offsStartColumnData()
	offsOther := other.offsStartColumnData()

	selfTimestamp := r.Timestamp()
	expirySelf, selfHasExpiry := r.Expiry()

	otherTimestamp := other.Timestamp()
	expiryOther, otherHasExpiry := other.Expiry()

	for _, colMeta := range r.Schema.Columns {
		if !colMeta.PKRole.IsPrimaryKey() {
			return 0
		}

		descending := colMeta.PKRole.IsCluster() && !colMeta.PKRole.Ascending()

		colSelf, err := r.readColumn(selfTimestamp, expirySelf, selfHasExpiry, &offsSelf)
		if err != nil {
			panic(err)
		}
		colOther, err := other.readColumn(otherTimestamp, expiryOther, otherHasExpiry, &offsOther)
		if err != nil {
			panic(err)
		}

		if colSelf.ColID != colMeta.ID || colOther.ColID != colMeta.ID {
			panic("row: primary key columns out of order")
		}
		if colSelf.IsNull || colOther.IsNull {
			panic("row: primary key columns must not be null")
		}

		cmp := colSelf.Value.Compare(colOther.Value)
		if cmp == 0 {
			continue
		}
		if descending {
			return -cmp
		}
		return cmp
	}

	return 0
}

// Merge combines r and other, which must share a schema, into a new
// DetachedRow: column ids present on only one side pass through; ids
// present on both keep the column with the greater timestamp.
func (r View) Merge(other View) *DetachedRow {
	if r.Schema != other.Schema {
		panic("row: merge requires identical schema")
	}

	next, stop := iter.Pull(r.Columns())
	defer stop()
	nextOther, stopOther := iter.Pull(other.Columns())
	defer stopOther()

	curSelf, okSelf := next()
	curOther, okOther := nextOther()

	var merged []ColumnData
	for okSelf || okOther {
		switch {
		case okSelf && okOther && curSelf.ColID == curOther.ColID:
			merged = append(merged, mergeColumns(curSelf, curOther))
			curSelf, okSelf = next()
			curOther, okOther = nextOther()
		case okSelf && (!okOther || columnRank(r.Schema, curSelf.ColID) < columnRank(r.Schema, curOther.ColID)):
			merged = append(merged, curSelf)
			curSelf, okSelf = next()
		default:
			merged = append(merged, curOther)
			curOther, okOther = nextOther()
		}
	}

	return Assemble(r.Schema, merged)
}

// DetachedRow is an owned row buffer, produced by Assemble and never
// mutated thereafter. Its ordering (for use as an ordered-set key) is
// CompareByPK on the embedded view.
type DetachedRow struct {
	Schema *schema.TableSchema
	Buf    []byte
}

// View returns a row.View referencing this DetachedRow's owned buffer.
func (d *DetachedRow) View() View {
	return NewView(d.Schema, d.Buf)
}

// ComparePK orders two DetachedRows by CompareByPK, making DetachedRow
// suitable as the key of a memtable's ordered set.
func ComparePK(a, b *DetachedRow) int {
	return a.View().CompareByPK(b.View())
}

// mostFrequentTimestamp returns the timestamp shared by the most columns,
// first occurrence winning ties, so Assemble's compression is deterministic.
func mostFrequentTimestamp(columns []ColumnData) clock.MergeTimestamp {
	if len(columns) == 0 {
		panic("row: assemble requires at least one column")
	}

	counts := make(map[clock.MergeTimestamp]int, len(columns))
	order := make([]clock.MergeTimestamp, 0, len(columns))
	for _, c := range columns {
		if counts[c.Timestamp] == 0 {
			order = append(order, c.Timestamp)
		}
		counts[c.Timestamp]++
	}

	best := order[0]
	for _, ts := range order {
		if counts[ts] > counts[best] {
			best = ts
		}
	}

	return best
}

func mostFrequentExpiry(columns []ColumnData) (clock.TtlTimestamp, bool) {
	counts := make(map[clock.TtlTimestamp]int)
	order := make([]clock.TtlTimestamp, 0)
	for _, c := range columns {
		if !c.HasExpiry {
			continue
		}
		if counts[c.Expiry] == 0 {
			order = append(order, c.Expiry)
		}
		counts[c.Expiry]++
	}

	if len(order) == 0 {
		return 0, false
	}

	best := order[0]
	for _, exp := range order {
		if counts[exp] > counts[best] {
			best = exp
		}
	}

	return best, true
}

// Assemble builds a DetachedRow from an unordered column list: it derives
// the row's shared timestamp and expiry from whichever values are most
// common among the columns, then writes each column with the flag
// combination that elides whatever matches the row defaults. Columns are
// written primary-key-first, in the schema's declared order, since
// CompareByPK reads that prefix sequentially and requires it to line up
// with schema.Columns; the remaining columns follow sorted by col_id.
func Assemble(s *schema.TableSchema, columns []ColumnData) *DetachedRow {
	sorted := append([]ColumnData(nil), columns...)
	sortColumnsForSchema(s, sorted)

	rowTimestamp := mostFrequentTimestamp(sorted)
	rowExpiry, hasRowExpiry := mostFrequentExpiry(sorted)

	bb := pool.Get()
	defer pool.Put(bb)

	bb.MustWriteByte(byte(newFlags(hasRowExpiry)))
	primitives.EncodeFixedU64(bb, uint64(rowTimestamp))
	if hasRowExpiry {
		primitives.EncodeFixedU32(bb, uint32(rowExpiry))
	}

	for _, col := range sorted {
		encodeColumn(bb, col, rowTimestamp, rowExpiry, hasRowExpiry)
	}

	buf := make([]byte, bb.Len())
	copy(buf, bb.Bytes())

	return &DetachedRow{Schema: s, Buf: buf}
}

// columnRank gives a column's canonical storage position within schema s:
// primary-key columns rank by their index in s.PKColumns (the declaration
// order CompareByPK relies on), and every other column ranks after them,
// ordered by col_id. It depends only on s and id, so it is consistent across
// any two rows of the same schema, which is what lets Merge's merge-join
// compare positions from two independently-assembled rows.
func columnRank(s *schema.TableSchema, id schema.ColumnID) int {
	for i, c := range s.PKColumns {
		if c.ID == id {
			return i
		}
	}
	return len(s.PKColumns) + int(id)
}

func sortColumnsForSchema(s *schema.TableSchema, columns []ColumnData) {
	for i := 1; i < len(columns); i++ {
		for j := i; j > 0 && columnRank(s, columns[j-1].ColID) > columnRank(s, columns[j].ColID); j-- {
			columns[j-1], columns[j] = columns[j], columns[j-1]
		}
	}
}

func encodeColumn(bb *pool.ByteBuffer, col ColumnData, rowTimestamp clock.MergeTimestamp, rowExpiry clock.TtlTimestamp, hasRowExpiry bool) {
	bb.MustWriteByte(byte(col.ColID))

	hasColumnTimestamp := col.Timestamp != rowTimestamp
	usesRowExpiry := col.HasExpiry && hasRowExpiry && col.Expiry == rowExpiry
	hasColumnExpiry := col.HasExpiry && !usesRowExpiry

	flags := newColumnFlags(col.IsNull, hasColumnTimestamp, hasColumnExpiry, usesRowExpiry)
	bb.MustWriteByte(byte(flags))

	if hasColumnTimestamp {
		primitives.EncodeFixedU64(bb, uint64(col.Timestamp))
	}
	if hasColumnExpiry {
		primitives.EncodeFixedU32(bb, uint32(col.Expiry))
	}

	if col.IsNull {
		return
	}

	switch col.Value.Kind {
	case BoolKind:
		primitives.EncodeBool(bb, col.Value.Bool)
	case Int32Kind:
		primitives.EncodeZigzagI32(bb, col.Value.Int32)
	case BigIntKind:
		primitives.EncodeZigzagI64(bb, col.Value.BigInt)
	case TextKind:
		primitives.EncodeUTF8(bb, col.Value.Text)
	}
}
