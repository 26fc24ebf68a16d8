package main

import "github.com/fabrica/fabrica/cmd"

func main() {
	cmd.Execute()
}
