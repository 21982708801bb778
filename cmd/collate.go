package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h4rr9/palette/collate"
	"github.com/h4rr9/palette/dataset"
	"github.com/h4rr9/palette/envconfig"
	"github.com/h4rr9/palette/model"
	"github.com/h4rr9/palette/palette"
)

func NewCollateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collate DATASET",
		Short: "Collate a JSONL dataset into tokenized training batches",
		Args:  cobra.ExactArgs(1),
		RunE:  collateHandler,
	}

	cmd.Flags().StringP("tokenizer", "t", "", "Path to a prepared tokenizer.json")
	cmd.MarkFlagRequired("tokenizer")
	cmd.Flags().IntP("batch-size", "b", 2, "Examples per batch")
	cmd.Flags().Float64P("proportion", "p", 0.5, "Fraction of text-first prompts, in [0.0, 1.0]")
	cmd.Flags().Uint64("seed", 0, "Random seed (default PALETTE_SEED, then the clock)")
	cmd.Flags().Bool("shuffle", false, "Shuffle examples before batching")
	cmd.Flags().Bool("strict", false, "Fail when an image span does not fit its row")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or cbor")
	cmd.Flags().StringP("output", "o", "", "Destination file (default stdout)")

	return cmd
}

func collateSeed(cmd *cobra.Command) uint64 {
	seed, _ := cmd.Flags().GetUint64("seed")
	if !cmd.Flags().Changed("seed") {
		if envconfig.Seed != 0 {
			return envconfig.Seed
		}

		return uint64(time.Now().UnixNano())
	}

	return seed
}

func newComposer(cmd *cobra.Command, source collate.Source) (*collate.Composer, error) {
	tokenizer, _ := cmd.Flags().GetString("tokenizer")
	processor, err := model.LoadTokenizer(tokenizer)
	if err != nil {
		return nil, err
	}

	p, _ := cmd.Flags().GetFloat64("proportion")

	var opts []collate.Option
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts = append(opts, collate.WithBoundsCheck())
	}

	return collate.New(palette.Prepare(processor), source, p, opts...)
}

func loadBatches(cmd *cobra.Command, args []string, source collate.Source) ([][]collate.Example, error) {
	d, err := dataset.Open(args[0])
	if err != nil {
		return nil, err
	}

	if shuffle, _ := cmd.Flags().GetBool("shuffle"); shuffle {
		d.Shuffle(source)
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	return d.Batches(batchSize), nil
}

func collateHandler(cmd *cobra.Command, args []string) error {
	seed := collateSeed(cmd)
	source := collate.NewSource(seed)

	composer, err := newComposer(cmd, source)
	if err != nil {
		return err
	}

	batches, err := loadBatches(cmd, args, source)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	var encode func(any) error
	switch format, _ := cmd.Flags().GetString("format"); format {
	case "json":
		enc := json.NewEncoder(w)
		encode = enc.Encode
	case "cbor":
		enc := cbor.NewEncoder(w)
		encode = enc.Encode
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	slog.Info("collating", "batches", len(batches), "seed", seed)

	g, ctx := errgroup.WithContext(cmd.Context())
	records := make(chan *collate.Record, envconfig.Prefetch)

	g.Go(func() error {
		defer close(records)
		for _, batch := range batches {
			record, err := composer.Collate(batch)
			if err != nil {
				return err
			}

			select {
			case records <- record:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	g.Go(func() error {
		for record := range records {
			if err := encode(record); err != nil {
				return err
			}
		}

		return nil
	})

	return g.Wait()
}
