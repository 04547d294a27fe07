// Package sstable implements the immutable, two-file on-disk table format:
// an mmap-backed data file of varint-length-framed rows and a flat mmap-backed
// index of fixed little-endian offsets into it, ordered by primary key.
package sstable

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"

	"github.com/hugetable/hugetable/errs"
	"github.com/hugetable/hugetable/internal/pool"
	"github.com/hugetable/hugetable/primitives"
	"github.com/hugetable/hugetable/row"
	"github.com/hugetable/hugetable/schema"
)

// TableConfig holds the directory new SSTable file pairs are created under
// and existing ones are opened from.
type TableConfig struct {
	BaseFolder string
}

// NewFile opens (creating if writeable) the file <nameBase>.<extension>
// under config.BaseFolder.
func (c *TableConfig) NewFile(nameBase, extension string, writeable bool) (*os.File, error) {
	path := filepath.Join(c.BaseFolder, nameBase+"."+extension)

	flags := os.O_RDONLY
	if writeable {
		flags = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if !writeable && os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotCommitted, path)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrIO, path, err)
	}

	return f, nil
}

// SsTable is an immutable, mmap-backed SSTable file pair: a flat index of
// data-file offsets and the varint-framed row data itself, both ordered by
// row primary key.
type SsTable struct {
	schema   *schema.TableSchema
	nameBase string

	indexFile *os.File
	dataFile  *os.File
	indexMmap mmap.MMap
	dataMmap  mmap.MMap
}

// Create writes rows (which must already be in ascending primary-key order)
// into a newly named file pair under config.BaseFolder, then opens it.
func Create(config *TableConfig, s *schema.TableSchema, rows iter.Seq[row.View]) (*SsTable, error) {
	nameBase := fmt.Sprintf("%s-%s", s.Name, uuid.New().String())

	indexFile, err := config.NewFile(nameBase, "index", true)
	if err != nil {
		return nil, err
	}
	defer indexFile.Close()

	dataFile, err := config.NewFile(nameBase, "data", true)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()

	idxBuf := pool.Get()
	defer pool.Put(idxBuf)

	var offset uint64
	for r := range rows {
		primitives.EncodeFixedU64(idxBuf, offset)

		rowBuf := pool.Get()
		r.WriteTo(rowBuf)
		n, err := rowBuf.WriteTo(dataFile)
		pool.Put(rowBuf)
		if err != nil {
			return nil, fmt.Errorf("%w: writing row to %s.data: %v", errs.ErrIO, nameBase, err)
		}
		offset += uint64(n)
	}

	if _, err := idxBuf.WriteTo(indexFile); err != nil {
		return nil, fmt.Errorf("%w: writing index %s.index: %v", errs.ErrIO, nameBase, err)
	}

	if err := indexFile.Sync(); err != nil {
		return nil, fmt.Errorf("%w: syncing %s.index: %v", errs.ErrIO, nameBase, err)
	}
	if err := dataFile.Sync(); err != nil {
		return nil, fmt.Errorf("%w: syncing %s.data: %v", errs.ErrIO, nameBase, err)
	}

	return Open(config, s, nameBase)
}

// Open mmaps an existing <nameBase>.index / <nameBase>.data file pair.
// Returns errs.ErrNotCommitted if the index file does not exist, meaning
// Create never completed (or crashed) for this name_base.
func Open(config *TableConfig, s *schema.TableSchema, nameBase string) (*SsTable, error) {
	indexFile, err := config.NewFile(nameBase, "index", false)
	if err != nil {
		return nil, err
	}

	dataFile, err := config.NewFile(nameBase, "data", false)
	if err != nil {
		indexFile.Close()
		return nil, err
	}

	indexMmap, err := mapFile(indexFile)
	if err != nil {
		indexFile.Close()
		dataFile.Close()
		return nil, fmt.Errorf("%w: mmapping %s.index: %v", errs.ErrIO, nameBase, err)
	}

	dataMmap, err := mapFile(dataFile)
	if err != nil {
		indexMmap.Unmap()
		indexFile.Close()
		dataFile.Close()
		return nil, fmt.Errorf("%w: mmapping %s.data: %v", errs.ErrIO, nameBase, err)
	}

	return &SsTable{
		schema:    s,
		nameBase:  nameBase,
		indexFile: indexFile,
		dataFile:  dataFile,
		indexMmap: indexMmap,
		dataMmap:  dataMmap,
	}, nil
}

func mapFile(f *os.File) (mmap.MMap, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return mmap.MMap{}, nil
	}

	return mmap.Map(f, mmap.RDONLY, 0)
}

// NameBase returns the shared file-name stem (without extension) this
// SSTable's files are stored under, for reopening later via Open.
func (t *SsTable) NameBase() string {
	return t.nameBase
}

const offsetWidth = 8

func (t *SsTable) indexLen() int {
	return len(t.indexMmap) / offsetWidth
}

func (t *SsTable) indexAt(i int) uint64 {
	offs := i * offsetWidth
	v, err := primitives.DecodeFixedU64(t.indexMmap, &offs)
	if err != nil {
		panic(fmt.Errorf("sstable: decoding index entry %d: %w", i, err))
	}
	return v
}

func (t *SsTable) rowAt(offset uint64) (row.View, error) {
	offs := int(offset)
	n, err := primitives.DecodeVarintLen(t.dataMmap, &offs)
	if err != nil {
		return row.View{}, fmt.Errorf("%w: decoding row length at offset %d in %s.data: %v", errs.ErrFileIntegrity, offset, t.nameBase, err)
	}
	if offs+n > len(t.dataMmap) {
		return row.View{}, fmt.Errorf("%w: row at offset %d in %s.data runs past end of file", errs.ErrFileIntegrity, offset, t.nameBase)
	}

	return row.NewView(t.schema, t.dataMmap[offs:offs+n]), nil
}

// FindByFullPK binary-searches the index for a row whose primary key
// matches pk's, returning (view, false, nil) on a clean miss.
func (t *SsTable) FindByFullPK(pk row.View) (row.View, bool, error) {
	n := t.indexLen()

	var searchErr error
	idx := sort.Search(n, func(i int) bool {
		if searchErr != nil {
			return true
		}
		v, err := t.rowAt(t.indexAt(i))
		if err != nil {
			searchErr = err
			return true
		}
		return v.CompareByPK(pk) >= 0
	})

	if searchErr != nil {
		return row.View{}, false, searchErr
	}
	if idx >= n {
		return row.View{}, false, nil
	}

	found, err := t.rowAt(t.indexAt(idx))
	if err != nil {
		return row.View{}, false, err
	}
	if found.CompareByPK(pk) != 0 {
		return row.View{}, false, nil
	}

	return found, true, nil
}

// All iterates every row in the table in ascending primary-key order.
func (t *SsTable) All() iter.Seq2[row.View, error] {
	return func(yield func(row.View, error) bool) {
		for i := 0; i < t.indexLen(); i++ {
			v, err := t.rowAt(t.indexAt(i))
			if !yield(v, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Close unmaps both mmaps and closes both underlying file descriptors.
func (t *SsTable) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(t.indexMmap) > 0 {
		record(t.indexMmap.Unmap())
	}
	if len(t.dataMmap) > 0 {
		record(t.dataMmap.Unmap())
	}
	record(t.indexFile.Close())
	record(t.dataFile.Close())

	if firstErr != nil {
		return fmt.Errorf("%w: closing sstable %s: %v", errs.ErrIO, t.nameBase, firstErr)
	}
	return nil
}
