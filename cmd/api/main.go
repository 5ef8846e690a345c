package main

import "github.com/PratikDhanave/machine-events-service/cmd/api/cmd"

func main() {
	cmd.Execute()
}
