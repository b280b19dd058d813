package main

import "akamaru/internal/app/runner"

func main() {
	runner.Run()
}
