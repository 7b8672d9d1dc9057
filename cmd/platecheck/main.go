package main

import (
	"platecheck/cmd/platecheck/cmd"
)

func main() {
	cmd.Execute()
}
