package artifact

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

// utf8BOM makes the CSV open with correct diacritics in spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportCSV writes the batch as a UTF-8 CSV with a byte-order mark, using
// the same column order as the xlsx artifacts. The highlight styling does
// not survive the format; the status columns carry the same information.
func ExportCSV(path string, recs []*record.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write csv %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	cols := Columns()
	if err := w.Write(cols); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range recs {
		if err := w.Write(recordRow(rec, cols)); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flush csv %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close csv %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
