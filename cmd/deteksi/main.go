package main

import "github.com/rzqiy/deteksi-kwh/cmd/deteksi/cmd"

func main() {
	cmd.Execute()
}
