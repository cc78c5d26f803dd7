package main

import "vaultrecon/cmd"

func main() {
	cmd.Execute()
}
