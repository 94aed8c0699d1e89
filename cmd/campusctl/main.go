package main

import "github.com/schoolops/campus/cmd/campusctl/cmd"

func main() {
	cmd.Execute()
}
