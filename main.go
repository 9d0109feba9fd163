package main

import (
	"fmt"
	"os"

	"kassabot/cmd/parse"
	"kassabot/cmd/register"
	"kassabot/cmd/root"
	"kassabot/cmd/serve"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(parse.Cmd)
	root.Cmd.AddCommand(register.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
