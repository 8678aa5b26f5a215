package main

import (
	"sensor-dashboard/cmd"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	cmd.Execute()
}
