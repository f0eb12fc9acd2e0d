package main

import (
	"context"
	"fmt"
	"os"

	"github.com/conorfennell/memodeck/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "memodeck: %v\n", err)
		os.Exit(1)
	}
}
