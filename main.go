/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "mythbuster/cmd"

func main() {
	cmd.Execute()
}
