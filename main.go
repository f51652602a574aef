package main

import "rendercore/cmd"

func main() {
	cmd.Execute()
}
