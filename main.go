package main

import "flyshark/internal/app"

func main() {
	app.Main()
}
