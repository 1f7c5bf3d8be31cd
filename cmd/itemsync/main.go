package main

import (
	"os"

	"github.com/idilsaglam/itemsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
