// Package table reads and writes the recipient table as delimited
// text. Column order from the input file is preserved; the reserved
// ThreadId and RfcMessageId columns are appended on export when the
// input did not carry them.
package table

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

// Load parses a recipient table. The first record is the header; a
// short data record leaves the remaining columns absent on the row
// rather than empty.
func Load(r io.Reader) ([]*message.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("recipient table is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading recipient table header")
	}

	var rows []*message.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading recipient table row %d", len(rows)+1)
		}
		row := message.NewRow()
		for i, name := range header {
			if i < len(record) {
				row.Set(name, record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) ([]*message.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening recipient table %q", path)
	}
	defer f.Close()
	return Load(f)
}

// Export writes the rows back out as delimited text. The header is
// the union of all row columns in order of first appearance, with the
// reserved correlation columns guaranteed present.
func Export(w io.Writer, rows []*message.Row) error {
	header := exportColumns(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing recipient table header")
	}
	record := make([]string, len(header))
	for i, row := range rows {
		for j, name := range header {
			record[j], _ = row.Get(name)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing recipient table row %d", i+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing recipient table")
}

// ExportFile is Export over a file path.
func ExportFile(path string, rows []*message.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating recipient table %q", path)
	}
	if err := Export(f, rows); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing recipient table %q", path)
}

func exportColumns(rows []*message.Row) []string {
	var header []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			header = append(header, name)
		}
	}
	for _, row := range rows {
		for _, name := range row.Columns() {
			add(name)
		}
	}
	add(message.ColumnThreadID)
	// Keep the legacy reply column when the input used it; add the
	// modern one otherwise.
	if !seen[message.ColumnReplyIDAlias] {
		add(message.ColumnReplyID)
	}
	return header
}
