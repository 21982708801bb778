package cmd

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/h4rr9/palette/palette"
)

func NewEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode IMAGE",
		Short: "Serialize an image file into pixel tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			img, _, err := image.Decode(f)
			if err != nil {
				return err
			}

			fmt.Println(palette.EncodeImage(img))
			return nil
		},
	}
}

func NewDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode TOKENS",
		Short: "Render a pixel-token string back into a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := args[0]
			if s == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				s = strings.TrimSpace(string(data))
			}

			img, err := palette.DecodeImage(s)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			return png.Encode(f, img)
		},
	}

	cmd.Flags().StringP("output", "o", "image.png", "Destination PNG file")

	return cmd
}
