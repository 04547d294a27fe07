package sstable

import (
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugetable/hugetable/errs"
	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
)

func testSchema() *schema.TableSchema {
	return schema.NewTableSchema("events", uuid.New(), []schema.ColumnSchema{
		{ID: 0, Name: "pk", Type: schema.Int32, PKRole: schema.Partition},
		{ID: 1, Name: "value", Type: schema.Text, PKRole: schema.Regular},
	})
}

func mkRow(s *schema.TableSchema, pk int32, value string) *row.DetachedRow {
	return row.Assemble(s, []row.ColumnData{
		{ColID: 0, Timestamp: 1, Value: row.Int32Value(pk)},
		{ColID: 1, Timestamp: 1, Value: row.TextValue(value)},
	})
}

func pkOnlyRow(s *schema.TableSchema, pk int32) *row.DetachedRow {
	return row.Assemble(s, []row.ColumnData{
		{ColID: 0, Timestamp: 1, Value: row.Int32Value(pk)},
		{ColID: 1, Timestamp: 1, IsNull: true},
	})
}

func TestSsTable_CreateThenFind(t *testing.T) {
	s := testSchema()
	config := &TableConfig{BaseFolder: t.TempDir()}

	rows := []*row.DetachedRow{
		mkRow(s, 1, "a"),
		mkRow(s, 3, "b"),
		mkRow(s, 5, "c"),
		mkRow(s, 7, "d"),
	}

	check := func(tbl *SsTable) {
		for _, tc := range []struct {
			pk    int32
			found bool
			value string
		}{
			{1, true, "a"},
			{3, true, "b"},
			{5, true, "c"},
			{7, true, "d"},
			{0, false, ""},
			{2, false, ""},
			{4, false, ""},
			{6, false, ""},
			{8, false, ""},
		} {
			v, ok, err := tbl.FindByFullPK(pkOnlyRow(s, tc.pk).View())
			require.NoError(t, err)
			require.Equal(t, tc.found, ok, "pk=%d", tc.pk)
			if tc.found {
				cd, ok := v.ReadColumnByID(1)
				require.True(t, ok)
				assert.Equal(t, tc.value, cd.Value.Text)
			}
		}
	}

	tbl, err := Create(config, s, func(yield func(row.View) bool) {
		for _, r := range rows {
			if !yield(r.View()) {
				return
			}
		}
	})
	require.NoError(t, err)
	check(tbl)
	nameBase := tbl.NameBase()
	require.NoError(t, tbl.Close())

	reopened, err := Open(config, s, nameBase)
	require.NoError(t, err)
	defer reopened.Close()
	check(reopened)
}

func TestSsTable_Open_MissingIndexIsNotCommitted(t *testing.T) {
	s := testSchema()
	config := &TableConfig{BaseFolder: t.TempDir()}

	_, err := Open(config, s, "does-not-exist")
	require.ErrorIs(t, err, errs.ErrNotCommitted)
}

func TestSsTable_All_IteratesInOrder(t *testing.T) {
	s := testSchema()
	config := &TableConfig{BaseFolder: t.TempDir()}

	rows := []*row.DetachedRow{mkRow(s, 1, "a"), mkRow(s, 2, "b"), mkRow(s, 3, "c")}
	tbl, err := Create(config, s, func(yield func(row.View) bool) {
		for _, r := range rows {
			if !yield(r.View()) {
				return
			}
		}
	})
	require.NoError(t, err)
	defer tbl.Close()

	var values []string
	for v, err := range tbl.All() {
		require.NoError(t, err)
		cd, ok := v.ReadColumnByID(1)
		require.True(t, ok)
		values = append(values, cd.Value.Text)
	}

	assert.True(t, slices.Equal([]string{"a", "b", "c"}, values))
}

func TestSsTable_Create_EmptyTable(t *testing.T) {
	s := testSchema()
	config := &TableConfig{BaseFolder: t.TempDir()}

	tbl, err := Create(config, s, func(yield func(row.View) bool) {})
	require.NoError(t, err)
	defer tbl.Close()

	_, ok, err := tbl.FindByFullPK(pkOnlyRow(s, 1).View())
	require.NoError(t, err)
	assert.False(t, ok)
}
