package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/xlsx2marc/internal/marc"
	"github.com/JonMunkholm/xlsx2marc/internal/sheet"
)

func (a *App) schemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List the supported spreadsheet columns",
		Args:  cobra.NoArgs,
		RunE:  a.runSchema,
	}
	cmd.Flags().Bool("json", false, "print the schema as JSON")
	a.bindFlag("schema.json", cmd.Flags().Lookup("json"))
	return cmd
}

type schemaInfo struct {
	Version       int      `json:"version"`
	Fields        []string `json:"fields"`
	KeyFields     []string `json:"key_fields"`
	MultiValued   []string `json:"multi_valued"`
	Delimiter     string   `json:"delimiter"`
	HoldingsOrder string   `json:"holdings_order"`
}

func (a *App) runSchema(cmd *cobra.Command, _ []string) error {
	info := schemaInfo{
		Version:       marc.KeySchemaVersion,
		Fields:        marc.SupportedFields(),
		KeyFields:     marc.KeyFields,
		MultiValued:   marc.MultiValuedFields,
		Delimiter:     marc.Delimiter,
		HoldingsOrder: string(marc.HoldingsOrder),
	}

	if a.v.GetBool("schema.json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	key := make(map[string]bool, len(info.KeyFields))
	for _, f := range info.KeyFields {
		key[f] = true
	}
	multi := make(map[string]bool, len(info.MultiValued))
	for _, f := range info.MultiValued {
		multi[f] = true
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tGROUPING")
	for _, f := range info.Fields {
		var notes []string
		if key[f] {
			notes = append(notes, "key")
		}
		if multi[f] {
			notes = append(notes, fmt.Sprintf("%q separated", marc.Delimiter))
		}
		fmt.Fprintf(tw, "%s\t%s\n", f, strings.Join(notes, ", "))
	}
	fmt.Fprintf(tw, "%s$<code>\tholdings, one line per row\n", marc.HoldingsTag)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nholdings subfield order: %s\n", info.HoldingsOrder)
	return nil
}

func (a *App) templateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank workbook with every supported header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := sheet.Template("Catalog", marc.TemplateHeaders())
			if err != nil {
				return err
			}
			out := a.v.GetString("template.output")
			if err := writeFileAtomic(out, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote template to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "marc_template.xlsx", "template file to write")
	a.bindFlag("template.output", cmd.Flags().Lookup("output"))
	return cmd
}
