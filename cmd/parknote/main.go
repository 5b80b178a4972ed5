package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/parknote/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "parknote: %v\n", err)
		os.Exit(1)
	}
}
