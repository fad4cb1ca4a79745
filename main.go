package main

import "leadsync/cmd"

func main() {
	cmd.Execute()
}
