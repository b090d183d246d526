package main

import "github.com/ValentinKolb/qdev/cmd"

func main() {
	cmd.Execute()
}
