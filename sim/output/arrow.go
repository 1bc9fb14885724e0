package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Schema is the Arrow schema of the table: timestep as int64, every other
// column as float64.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.columns))
	for i, c := range t.columns {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if c == TimestepColumn {
			typ = arrow.PrimitiveTypes.Int64
		}
		fields[i] = arrow.Field{Name: c, Type: typ}
	}
	return arrow.NewSchema(fields, nil)
}

// Record converts the table into a single Arrow record. The caller must
// Release it.
func (t *Table) Record(mem memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(mem, t.Schema())
	defer b.Release()

	for j, c := range t.columns {
		if c == TimestepColumn {
			fb := b.Field(j).(*array.Int64Builder)
			for _, r := range t.rows {
				fb.Append(int64(r[j]))
			}
			continue
		}
		fb := b.Field(j).(*array.Float64Builder)
		for _, r := range t.rows {
			fb.Append(r[j])
		}
	}
	return b.NewRecord()
}

// WriteCSV writes the table as CSV with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	rec := t.Record(memory.NewGoAllocator())
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return cw.Error()
}

// WriteArrow writes the table in the Arrow IPC stream format, which needs
// no seeking and so also serves pipes and stdout.
func WriteArrow(w io.Writer, t *Table) error {
	mem := memory.NewGoAllocator()
	rec := t.Record(mem)
	defer rec.Release()

	sw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := sw.Write(rec); err != nil {
		sw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	return sw.Close()
}

// WriteArrowFile writes the table in the Arrow IPC file format (random
// access footer), which needs a seekable destination.
func WriteArrowFile(w io.WriteSeeker, t *Table) error {
	mem := memory.NewGoAllocator()
	rec := t.Record(mem)
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow file writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	return fw.Close()
}
