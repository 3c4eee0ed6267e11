package main

import (
	"github.com/ab180/lrbatch/cmd/lrbatch/cmd"
)

func main() {
	cmd.Execute()
}
