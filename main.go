package main

import "case-reconciler/cmd"

func main() {
	cmd.Execute()
}
