package main

import (
	"context"
	"fmt"
	"os"

	cmd "github.com/cozy-creator/img2img/cmd/img2img"
)

func main() {
	if err := cmd.Cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
