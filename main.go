package main

import "github.com/RyanBlaney/feature-pipeline/cmd"

func main() {
	cmd.Execute()
}
