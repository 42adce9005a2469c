package main

import "github.com/nimbusnote/authserver/cmd"

func main() {
	cmd.Execute()
}
