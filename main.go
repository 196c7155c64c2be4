package main

import "github.com/amoca-labs/amoca/cmd"

func main() {
	cmd.Execute()
}
