package main

import "yieldscraper/internal/cli"

func main() {
	cli.Execute()
}
