package cmd

import (
	"bytes"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/h4rr9/palette/envconfig"
	"github.com/h4rr9/palette/logutil"
	"github.com/h4rr9/palette/model"
	"github.com/h4rr9/palette/palette"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "palette",
		Short: "Palette-image captioning batch toolkit",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			envconfig.LoadConfig()

			level := slog.LevelInfo
			if envconfig.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
		},
	}

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewPrepareCmd(),
		NewCollateCmd(),
		NewInspectCmd(),
		NewEncodeCmd(),
		NewDecodeCmd(),
	)

	return rootCmd
}

func NewPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare TOKENIZER",
		Short: "Register the pixel and marker tokens in a tokenizer.json",
		Args:  cobra.ExactArgs(1),
		RunE:  prepareHandler,
	}

	cmd.Flags().StringP("output", "o", "", "Destination file (default overwrites the input)")

	return cmd
}

func prepareHandler(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := model.ExtendTokenizer(bytes.NewReader(data), &buf, palette.Tokens()...); err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = args[0]
	}

	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return err
	}

	slog.Info("prepared tokenizer", "tokens", len(palette.Tokens()), "path", output)
	return nil
}
