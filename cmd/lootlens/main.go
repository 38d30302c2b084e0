package main

import (
	"github.com/lootlens/lootlens/cmd/lootlens/cmd"
)

func main() {
	cmd.Execute()
}
