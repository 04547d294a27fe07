// Package schema describes the immutable shape of a table: its columns,
// their types, and which of them form the primary key.
package schema

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hugetable/hugetable/errs"
)

// ColumnID identifies a column within a schema. The valid range is
// [0,MaxColumnID]; the 64-value ceiling leaves room for a future present-
// column bitset keyed by id.
type ColumnID uint8

// MaxColumnID is the largest ColumnID a schema may declare.
const MaxColumnID ColumnID = 63

// ColumnType is the logical value domain of a column.
type ColumnType uint8

const (
	Bool ColumnType = iota
	Int32
	BigInt
	Text
)

// String implements fmt.Stringer.
func (t ColumnType) String() string {
	switch t {
	case Bool:
		return "Bool"
	case Int32:
		return "Int32"
	case BigInt:
		return "BigInt"
	case Text:
		return "Text"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

// PrimaryKeyRole tags a column as part of the partition key, part of the
// clustering key (with a sort direction), or a regular column.
type PrimaryKeyRole struct {
	kind      pkKind
	ascending bool
}

type pkKind uint8

const (
	pkRegular pkKind = iota
	pkPartition
	pkCluster
)

// Partition is the role of a column forming the partition key.
var Partition = PrimaryKeyRole{kind: pkPartition}

// Regular is the role of a non-key column.
var Regular = PrimaryKeyRole{kind: pkRegular}

// Cluster is the role of a column forming the clustering key, sorted
// ascending if ascending is true and descending otherwise.
func Cluster(ascending bool) PrimaryKeyRole {
	return PrimaryKeyRole{kind: pkCluster, ascending: ascending}
}

// IsPrimaryKey reports whether this role participates in the primary key.
func (r PrimaryKeyRole) IsPrimaryKey() bool {
	return r.kind == pkPartition || r.kind == pkCluster
}

// IsCluster reports whether this role is a clustering-key column.
func (r PrimaryKeyRole) IsCluster() bool {
	return r.kind == pkCluster
}

// Ascending reports the clustering sort direction. Only meaningful when
// IsCluster is true.
func (r PrimaryKeyRole) Ascending() bool {
	return r.ascending
}

// String implements fmt.Stringer.
func (r PrimaryKeyRole) String() string {
	switch r.kind {
	case pkPartition:
		return "Partition"
	case pkCluster:
		if r.ascending {
			return "Cluster(ascending)"
		}
		return "Cluster(descending)"
	default:
		return "Regular"
	}
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	ID     ColumnID
	Name   string
	Type   ColumnType
	PKRole PrimaryKeyRole
}

// TableSchema is the immutable description of a table: its identity, its
// declared columns, and the derived primary-key column list.
type TableSchema struct {
	Name      string
	TableID   uuid.UUID
	Columns   []ColumnSchema
	PKColumns []ColumnSchema
}

// NewTableSchema builds a TableSchema, deriving PKColumns from the columns
// whose PKRole participates in the primary key, in declaration order.
// Panics if two columns share a ColumnID or a ColumnID exceeds MaxColumnID:
// both are caller bugs, not recoverable conditions.
func NewTableSchema(name string, tableID uuid.UUID, columns []ColumnSchema) *TableSchema {
	seen := make(map[ColumnID]bool, len(columns))
	pkColumns := make([]ColumnSchema, 0, len(columns))

	for _, c := range columns {
		if c.ID > MaxColumnID {
			panic(fmt.Sprintf("schema: column id %d exceeds max %d", c.ID, MaxColumnID))
		}
		if seen[c.ID] {
			panic(fmt.Sprintf("schema: duplicate column id %d", c.ID))
		}
		seen[c.ID] = true

		if c.PKRole.IsPrimaryKey() {
			pkColumns = append(pkColumns, c)
		}
	}

	return &TableSchema{
		Name:      name,
		TableID:   tableID,
		Columns:   columns,
		PKColumns: pkColumns,
	}
}

// Column returns the ColumnSchema with the given id, or
// errs.ErrColumnNotFound if no such column is declared.
func (s *TableSchema) Column(id ColumnID) (ColumnSchema, error) {
	for _, c := range s.Columns {
		if c.ID == id {
			return c, nil
		}
	}

	return ColumnSchema{}, fmt.Errorf("%w: column id %d", errs.ErrColumnNotFound, id)
}
