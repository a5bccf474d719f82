package main

import "github.com/KaramelBytes/querylens/cmd"

func main() {
	cmd.Execute()
}
