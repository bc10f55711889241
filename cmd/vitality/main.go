package main

import "github.com/vietddude/vitality/internal/cli"

func main() {
	cli.Execute()
}
