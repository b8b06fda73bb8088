package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list assets in the corpus",
		Args:    cobra.NoArgs,
		RunE: withConfig(func(ctx context.Context, e *env, flags *pflag.FlagSet, _ []string) error {
			st, err := e.conf.OpenCorpus(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()
			digests, _ := flags.GetBool("digest")

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			header := table.Row{"Key", "Size", "Format", "Dimensions"}
			if digests {
				header = append(header, "SHA256")
			}
			tw.AppendHeader(header)
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
			})

			it := st.Iterate(ctx)
			defer it.Close()
			var (
				n     int
				total uint64
			)
			for it.Next() {
				info := it.Info()
				n++
				total += info.Size
				dims := "-"
				if info.Meta.HasDimensions() {
					dims = fmt.Sprintf("%dx%d", info.Meta.Width, info.Meta.Height)
				}
				format := info.Meta.Format
				if format == "" {
					format = "-"
				}
				row := table.Row{info.Key.String(), humanize.IBytes(info.Size), format, dims}
				if digests {
					row = append(row, info.Meta.SHA256.String())
				}
				tw.AppendRow(row)
			}
			if err := it.Err(); err != nil {
				return err
			}
			if n != 0 {
				fmt.Println(tw.Render())
			}
			fmt.Printf("%d assets, %s\n", n, humanize.IBytes(total))
			return nil
		}),
	}
	cmd.Flags().Bool("digest", false, "print content digests")
	Root.AddCommand(cmd)
}
