package main

import "codeindex/cmd"

func main() {
	cmd.Execute()
}
