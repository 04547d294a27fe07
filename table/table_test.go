package table

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugetable/hugetable/clock"
	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
	"github.com/hugetable/hugetable/sstable"
	"github.com/hugetable/hugetable/tombstone"
)

func testSchema() *schema.TableSchema {
	return schema.NewTableSchema("events", uuid.New(), []schema.ColumnSchema{
		{ID: 0, Name: "shard", Type: schema.BigInt, PKRole: schema.Partition},
		{ID: 1, Name: "seq", Type: schema.Int32, PKRole: schema.Cluster(true)},
		{ID: 2, Name: "payload", Type: schema.Text, PKRole: schema.Regular},
	})
}

func pkRow(s *schema.TableSchema, shard int64, seq int32) *row.DetachedRow {
	return row.Assemble(s, []row.ColumnData{
		{ColID: 0, Timestamp: 1, Value: row.BigIntValue(shard)},
		{ColID: 1, Timestamp: 1, Value: row.Int32Value(seq)},
		{ColID: 2, Timestamp: 1, IsNull: true},
	})
}

func TestTable_InsertThenGet_FromMemtable(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	tbl := New(s, config, clock.NewManualClock(100))

	require.NoError(t, tbl.Insert([]row.ColumnData{
		{ColID: 0, Value: row.BigIntValue(1)},
		{ColID: 1, Value: row.Int32Value(1)},
		{ColID: 2, Value: row.TextValue("hello")},
	}))

	got, ok, err := tbl.Get(pkRow(s, 1, 1))
	require.NoError(t, err)
	require.True(t, ok)

	cd, ok := got.View().ReadColumnByID(2)
	require.True(t, ok)
	assert.Equal(t, "hello", cd.Value.Text)
}

func TestTable_Get_Miss(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	tbl := New(s, config, clock.NewManualClock(100))

	_, ok, err := tbl.Get(pkRow(s, 99, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTable_Flush_MovesRowsToSSTable(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	mc := clock.NewManualClock(100)
	tbl := New(s, config, mc)

	require.NoError(t, tbl.Insert([]row.ColumnData{
		{ColID: 0, Value: row.BigIntValue(1)},
		{ColID: 1, Value: row.Int32Value(1)},
		{ColID: 2, Value: row.TextValue("flushed")},
	}))

	require.NoError(t, tbl.Flush(context.Background()))

	got, ok, err := tbl.Get(pkRow(s, 1, 1))
	require.NoError(t, err)
	require.True(t, ok)
	cd, ok := got.View().ReadColumnByID(2)
	require.True(t, ok)
	assert.Equal(t, "flushed", cd.Value.Text)

	require.NoError(t, tbl.Close())
}

func TestTable_Get_MergesMemtableAndSSTable(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	mc := clock.NewManualClock(100)
	tbl := New(s, config, mc)

	require.NoError(t, tbl.Insert([]row.ColumnData{
		{ColID: 0, Value: row.BigIntValue(1)},
		{ColID: 1, Value: row.Int32Value(1)},
		{ColID: 2, Value: row.TextValue("old")},
	}))
	require.NoError(t, tbl.Flush(context.Background()))

	mc.Set(200)
	require.NoError(t, tbl.Insert([]row.ColumnData{
		{ColID: 0, Value: row.BigIntValue(1)},
		{ColID: 1, Value: row.Int32Value(1)},
		{ColID: 2, Value: row.TextValue("new")},
	}))

	got, ok, err := tbl.Get(pkRow(s, 1, 1))
	require.NoError(t, err)
	require.True(t, ok)
	cd, ok := got.View().ReadColumnByID(2)
	require.True(t, ok)
	assert.Equal(t, "new", cd.Value.Text, "the memtable's later write must win the merge")
}

func TestTable_DeleteRow_HidesRowFromGet(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	mc := clock.NewManualClock(100)
	tbl := New(s, config, mc)

	require.NoError(t, tbl.Insert([]row.ColumnData{
		{ColID: 0, Value: row.BigIntValue(1)},
		{ColID: 1, Value: row.Int32Value(1)},
		{ColID: 2, Value: row.TextValue("gone soon")},
	}))

	mc.Set(200)
	tbl.DeleteRow(pkRow(s, 1, 1))

	_, ok, err := tbl.Get(pkRow(s, 1, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTable_DeleteRange_HidesMatchingRows(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	mc := clock.NewManualClock(100)
	tbl := New(s, config, mc)

	for _, seq := range []int32{1, 2, 3} {
		require.NoError(t, tbl.Insert([]row.ColumnData{
			{ColID: 0, Value: row.BigIntValue(1)},
			{ColID: 1, Value: row.Int32Value(seq)},
			{ColID: 2, Value: row.TextValue("x")},
		}))
	}

	mc.Set(200)
	lower := tombstone.NewPartialClusterKey(s, row.BigIntValue(1), row.Int32Value(1))
	upper := tombstone.NewPartialClusterKey(s, row.BigIntValue(1), row.Int32Value(2))
	tbl.DeleteRange(&lower, &upper, true, true)

	_, ok, err := tbl.Get(pkRow(s, 1, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tbl.Get(pkRow(s, 1, 2))
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := tbl.Get(pkRow(s, 1, 3))
	require.NoError(t, err)
	require.True(t, ok)
	cd, ok := got.View().ReadColumnByID(2)
	require.True(t, ok)
	assert.Equal(t, "x", cd.Value.Text)
}

func TestTable_Flush_EmptyMemtableIsNoOp(t *testing.T) {
	s := testSchema()
	config := &sstable.TableConfig{BaseFolder: t.TempDir()}
	tbl := New(s, config, clock.NewManualClock(100))

	require.NoError(t, tbl.Flush(context.Background()))
	require.NoError(t, tbl.Close())
}
