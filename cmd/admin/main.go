package main

import "github.com/example/ec-admin-console/internal/cmd"

func main() {
	cmd.Execute()
}
