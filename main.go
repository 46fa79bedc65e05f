package main

import "github.com/camden-git/missingpersons/cmd"

func main() {
	cmd.Execute()
}
