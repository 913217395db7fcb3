package main

import "yolodetect/internal/cli"

func main() {
	cli.Execute()
}
