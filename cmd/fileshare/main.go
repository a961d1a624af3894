package main

import "github.com/09sachin/fileshare/internal/cli"

func main() {
	cli.Execute()
}
