package main

import "github.com/vibast-solutions/ms-go-tg-payments/cmd"

func main() {
	cmd.Execute()
}
