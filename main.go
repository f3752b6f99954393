package main

import "github.com/perillaroc/nwpc-system-time-line-tool/internal/cmd"

func main() {
	cmd.Execute()
}
