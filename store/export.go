package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/phanxgames/arbor/tree"
)

// WriteCSV dumps node ids and coordinates as comma-separated text, one
// `id,x,y` row per node, no header.
func WriteCSV(t *tree.Tree, w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, n := range t.Nodes {
		row := []string{
			n.ID,
			strconv.FormatFloat(n.X, 'f', -1, 64),
			strconv.FormatFloat(n.Y, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the dump to a file.
func ExportCSV(t *tree.Tree, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: export csv: %w", err)
	}
	if err := WriteCSV(t, f); err != nil {
		f.Close()
		return fmt.Errorf("store: export csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: export csv: %w", err)
	}
	return nil
}
