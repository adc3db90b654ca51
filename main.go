package main

import "github.com/metal-toolbox/inventory/cmd"

func main() {
	cmd.Execute()
}
