package main

import "github.com/testrunner/dashboard/internal/cli"

func main() {
	cli.Execute()
}
