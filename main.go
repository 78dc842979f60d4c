package main

import "github.com/aiguardian/remediator/cmd"

func main() {
	cmd.Execute()
}
