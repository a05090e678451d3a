/*
	Copyright 2025 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/qualipredict/cmd"

func main() {
	cmd.Execute()
}
