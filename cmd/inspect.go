package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/h4rr9/palette/collate"
)

func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect DATASET",
		Short: "Collate a dataset and summarize the resulting batches",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}

	cmd.Flags().StringP("tokenizer", "t", "", "Path to a prepared tokenizer.json")
	cmd.MarkFlagRequired("tokenizer")
	cmd.Flags().IntP("batch-size", "b", 2, "Examples per batch")
	cmd.Flags().Float64P("proportion", "p", 0.5, "Fraction of text-first prompts, in [0.0, 1.0]")
	cmd.Flags().Uint64("seed", 0, "Random seed (default PALETTE_SEED, then the clock)")
	cmd.Flags().Bool("shuffle", false, "Shuffle examples before batching")
	cmd.Flags().Bool("strict", false, "Fail when an image span does not fit its row")
	cmd.Flags().Int("limit", 0, "Inspect at most this many batches (default all)")

	return cmd
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	source := collate.NewSource(collateSeed(cmd))

	composer, err := newComposer(cmd, source)
	if err != nil {
		return err
	}

	batches, err := loadBatches(cmd, args, source)
	if err != nil {
		return err
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(batches) {
		batches = batches[:limit]
	}

	var data [][]string
	var kinds []float64

	example := 0
	for i, batch := range batches {
		record, err := composer.Collate(batch)
		if err != nil {
			return err
		}

		for row := range record.InputIDs {
			var tokens int32
			for _, v := range record.AttentionMask[row] {
				tokens += v
			}

			offset := -1
			for j, masked := range record.ImageMasks[row] {
				if masked {
					offset = j
					break
				}
			}

			kind := collate.Kind(record.Kinds[row])
			kinds = append(kinds, float64(record.Kinds[row]))

			data = append(data, []string{
				strconv.Itoa(example),
				strconv.Itoa(i),
				kind.String(),
				strconv.Itoa(int(tokens)),
				strconv.Itoa(offset),
			})
			example++
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"EXAMPLE", "BATCH", "KIND", "TOKENS", "IMAGE OFFSET"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	p, _ := cmd.Flags().GetFloat64("proportion")
	fmt.Printf("\ntext-first fraction: %.3f (requested %.3f) over %d examples\n",
		stat.Mean(kinds, nil), p, len(kinds))

	return nil
}
