package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h4rr9/palette/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
