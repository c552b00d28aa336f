package main

import "github.com/jfmyers9/listenlog/cmd"

func main() {
	cmd.Execute()
}
