package main

import "github.com/vietddude/labeler/internal/cli"

func main() {
	cli.Execute()
}
