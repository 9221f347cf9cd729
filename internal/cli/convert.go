package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/xlsx2marc/internal/core"
)

func (a *App) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <workbook.xlsx>",
		Short: "Convert a workbook to a .mrk file",
		Long: `Convert reads the active sheet of the workbook and writes one MARC record
per group of matching rows. Without --output the file is written to
--dir as export_<timestamp>.mrk; use "-o -" to write to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runConvert,
	}

	cmd.Flags().String("lang", "", "language written to 008 when a record has no 041 $a (default und)")
	cmd.Flags().StringP("output", "o", "", `output file, or "-" for stdout`)
	cmd.Flags().String("dir", ".", "directory for the generated export file")
	cmd.Flags().Duration("timeout", core.DefaultConvertTimeout, "maximum duration of the conversion")

	for _, name := range []string{"lang", "output", "dir", "timeout"} {
		a.bindFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func (a *App) runConvert(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	svc := core.NewService(
		core.WithDefaultLanguage(a.language()),
		core.WithTimeout(a.v.GetDuration("timeout")),
		core.WithClock(time.Now),
		core.WithLogger(a.log),
	)

	conv, err := svc.Convert(cmd.Context(), core.ConvertRequest{
		FileName: filepath.Base(path),
		File:     f,
	})
	if err != nil {
		if core.IsUserFacing(err) {
			return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
		}
		return fmt.Errorf("convert %s: %w", path, err)
	}

	out := a.v.GetString("output")
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(conv.Body)
		return err
	}
	if out == "" {
		out = filepath.Join(a.v.GetString("dir"), conv.FileName)
	}
	if err := writeFileAtomic(out, conv.Body); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records (%d holdings) to %s\n",
		conv.Stats.Records, conv.Stats.HoldingsItems, out)
	return nil
}

// writeFileAtomic writes data to a temporary file beside path and renames
// it into place. A failed write leaves path untouched.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".xlsx2marc-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
