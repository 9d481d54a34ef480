package main

import (
	"os"

	"github.com/nonibytes/dbkeeper/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
