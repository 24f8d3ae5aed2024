package main

import "github.com/vietddude/fullres/internal/cli"

func main() {
	cli.Execute()
}
