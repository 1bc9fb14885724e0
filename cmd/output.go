package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/transmission-sim/transmission-sim/sim/output"
)

// Output formats accepted by --format.
const (
	FormatCSV    = "csv"
	FormatArrow  = "arrow"
	FormatSQLite = "sqlite"
)

var validFormats = map[string]string{
	FormatCSV:    ".csv",
	FormatArrow:  ".arrow",
	FormatSQLite: ".db",
}

func addOutputFlags(c *cobra.Command) {
	c.Flags().StringVar(&outPath, "out", "", "Output file (default: stdout; required for sqlite)")
	c.Flags().StringVar(&outputFormat, "format", FormatCSV, "Output format (csv, arrow, sqlite)")
}

// writeTable writes tbl in the given format. csv and arrow go to stdout when
// path is empty, arrow then as an IPC stream since stdout cannot seek; a
// path gets the arrow file format. sqlite needs a database path and stores
// tbl under id.
func writeTable(ctx context.Context, stdout io.Writer, tbl *output.Table, format, path, id string) error {
	if _, ok := validFormats[format]; !ok {
		return fmt.Errorf("unknown output format %q; valid: csv, arrow, sqlite", format)
	}
	if format == FormatSQLite {
		if path == "" {
			return fmt.Errorf("--out is required for sqlite output")
		}
		sink, err := output.OpenSQLite(ctx, path)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Write(ctx, id, tbl); err != nil {
			return err
		}
		logrus.Infof("Stored run %q (%d rows) in %s", id, tbl.Rows(), path)
		return nil
	}

	if path == "" {
		if format == FormatArrow {
			return output.WriteArrow(stdout, tbl)
		}
		return output.WriteCSV(stdout, tbl)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	if format == FormatArrow {
		err = output.WriteArrowFile(f, tbl)
	} else {
		err = output.WriteCSV(f, tbl)
	}
	if err != nil {
		return err
	}
	logrus.Infof("Wrote %d rows to %s", tbl.Rows(), path)
	return f.Close()
}
