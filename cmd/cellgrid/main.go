package main

import "github.com/MeKo-Tech/cellgrid/cmd/cellgrid/cmd"

func main() {
	cmd.Execute()
}
