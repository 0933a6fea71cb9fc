package main

import (
	"swarmpool/cli/root"

	_ "swarmpool/cli/config"
	_ "swarmpool/cli/get"
)

func main() {
	root.Execute()
}
