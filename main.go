package main

import "github.com/piyawatt/invoice-ocr-service/cmd"

func main() {
	cmd.Execute()
}
