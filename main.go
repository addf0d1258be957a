package main

import (
	"os"

	"github.com/mikaelmello/icmping/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
