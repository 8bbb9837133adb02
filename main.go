package main

import (
	"fmt"
	"os"

	"fjacquet/budget-sync/cmd/categorize"
	"fjacquet/budget-sync/cmd/memory"
	"fjacquet/budget-sync/cmd/root"
	"fjacquet/budget-sync/cmd/serve"
	synccmd "fjacquet/budget-sync/cmd/sync"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(synccmd.Cmd)
	root.Cmd.AddCommand(categorize.Cmd)
	root.Cmd.AddCommand(memory.Cmd)
	root.Cmd.AddCommand(serve.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
