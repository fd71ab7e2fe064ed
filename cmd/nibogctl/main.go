package main

import (
	"os"

	"github.com/pittisunilkumar3/nibog-sub001/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
