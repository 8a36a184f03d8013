package main

import "github.com/Bandi86/2025-sub008/internal/cli"

func main() {
	cli.Execute()
}
