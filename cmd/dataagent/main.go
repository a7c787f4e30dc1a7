package main

import "github.com/habiliai/dataagent/cmd/dataagent/cmd"

func main() {
	cmd.Execute()
}
