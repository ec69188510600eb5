package main

import "github.com/jmcleod/registrar/cmd/registrar/cmd"

func main() {
	cmd.Execute()
}
