package main

import "github.com/namelessnanashi/census/cmd"

func main() {
	cmd.Execute()
}
