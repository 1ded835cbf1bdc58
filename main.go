package main

import "github.com/fakeyudi/memex/cmd"

func main() {
	cmd.Execute()
}
