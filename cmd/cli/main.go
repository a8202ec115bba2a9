package main

import "github.com/molmatt/iopsy/pkg/cli"

func main() {
	cli.Execute()
}
