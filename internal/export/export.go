// Package export writes encoded vectors as Arrow IPC files or Parquet.
package export

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// ErrUnknownFormat is returned for an output path with no known extension.
var ErrUnknownFormat = stderrors.New("unknown export format")

// Row is one encoded item.
type Row struct {
	ID        string
	Vector    hdc.Vector
	KmerCount int32
	Length    int32
}

// Schema is the Arrow schema shared by both formats.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String},
	{Name: "vector", Type: &arrow.FixedSizeBinaryType{ByteWidth: hdc.Bytes}},
	{Name: "kmer_count", Type: arrow.PrimitiveTypes.Int32},
	{Name: "length", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// ToRecord builds an Arrow record from rows. The caller releases it.
func ToRecord(mem memory.Allocator, rows []Row) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	ids := b.Field(0).(*array.StringBuilder)
	vecs := b.Field(1).(*array.FixedSizeBinaryBuilder)
	kmers := b.Field(2).(*array.Int32Builder)
	lengths := b.Field(3).(*array.Int32Builder)

	b.Reserve(len(rows))
	for i := range rows {
		ids.Append(rows[i].ID)
		vecs.Append(rows[i].Vector.Bytes())
		kmers.Append(rows[i].KmerCount)
		lengths.Append(rows[i].Length)
	}
	return b.NewRecord()
}

// WriteArrow writes rec as an Arrow IPC file.
func WriteArrow(w io.Writer, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return gverr.Wrap(err, gverr.ErrorTypeComputation, "export.WriteArrow", "open IPC writer")
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return gverr.Wrap(err, gverr.ErrorTypeComputation, "export.WriteArrow", "write record")
	}
	if err := fw.Close(); err != nil {
		return gverr.Wrap(err, gverr.ErrorTypeComputation, "export.WriteArrow", "close IPC writer")
	}
	metrics.ExportRecordsTotal.WithLabelValues("arrow").Add(float64(rec.NumRows()))
	return nil
}

// vectorRecord is the Parquet row layout.
type vectorRecord struct {
	ID        string `parquet:"id"`
	Vector    []byte `parquet:"vector"`
	KmerCount int32  `parquet:"kmer_count"`
	Length    int32  `parquet:"length"`
}

// WriteParquet writes rec as a Zstd-compressed Parquet file.
func WriteParquet(w io.Writer, rec arrow.Record) error {
	if !rec.Schema().Equal(Schema) {
		return gverr.NewValidationError("export.WriteParquet", "record does not have the export schema")
	}
	rows := int(rec.NumRows())
	ids := rec.Column(0).(*array.String)
	vecs := rec.Column(1).(*array.FixedSizeBinary)
	kmers := rec.Column(2).(*array.Int32)
	lengths := rec.Column(3).(*array.Int32)

	records := make([]vectorRecord, rows)
	for i := 0; i < rows; i++ {
		records[i] = vectorRecord{
			ID:        ids.Value(i),
			Vector:    append([]byte(nil), vecs.Value(i)...),
			KmerCount: kmers.Value(i),
			Length:    lengths.Value(i),
		}
	}

	pw := parquet.NewGenericWriter[vectorRecord](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(records); err != nil {
		_ = pw.Close()
		return gverr.Wrap(err, gverr.ErrorTypeComputation, "export.WriteParquet", "write rows")
	}
	if err := pw.Close(); err != nil {
		return gverr.Wrap(err, gverr.ErrorTypeComputation, "export.WriteParquet", "close writer")
	}
	metrics.ExportRecordsTotal.WithLabelValues("parquet").Add(float64(rows))
	return nil
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, gverr.Wrap(err, gverr.ErrorTypeValidation, "export.ReadParquet", "open file")
	}
	pr := parquet.NewGenericReader[vectorRecord](pf)
	defer pr.Close()

	records := make([]vectorRecord, pr.NumRows())
	if _, err := pr.Read(records); err != nil && err != io.EOF {
		return nil, gverr.Wrap(err, gverr.ErrorTypeValidation, "export.ReadParquet", "read rows")
	}

	out := make([]Row, len(records))
	for i, rec := range records {
		v, err := hdc.FromBytes(rec.Vector)
		if err != nil {
			return nil, gverr.Wrap(err, gverr.ErrorTypeValidation, "export.ReadParquet",
				fmt.Sprintf("row %d", i))
		}
		out[i] = Row{ID: rec.ID, Vector: v, KmerCount: rec.KmerCount, Length: rec.Length}
	}
	return out, nil
}

// WriteFile writes rows to path, choosing the format from its extension
// (.arrow, .ipc, .parquet).
func WriteFile(path string, rows []Row) error {
	var write func(io.Writer, arrow.Record) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".ipc":
		write = WriteArrow
	case ".parquet":
		write = WriteParquet
	default:
		return gverr.WrapValidationError(ErrUnknownFormat, "export.WriteFile", path)
	}

	rec := ToRecord(memory.NewGoAllocator(), rows)
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, rec); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
