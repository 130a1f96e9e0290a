package main

import "github.com/opaquebits/modelinspect/cmd"

func main() {
	cmd.Execute()
}
