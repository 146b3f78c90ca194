package main

import (
	"fmt"
	"os"

	"discleanse/command"
)

func main() {
	// 任何致命错误都只打印一行并以非零状态退出，公会保持中断时的状态，可直接重跑。
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
