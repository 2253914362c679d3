package main

import "github.com/lenmanean/doer-sub005/internal/cli"

func main() {
	cli.Execute()
}
