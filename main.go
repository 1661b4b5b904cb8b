package main

import "pydiatra/cmd"

func main() {
	cmd.Execute()
}
