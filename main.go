package main

import "github.com/riddopic/garcun/cmd"

func main() {
	cmd.Execute()
}
