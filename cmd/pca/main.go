package main

import "github.com/gematik/pca/cmd/pca/cmd"

func main() {
	cmd.Execute()
}
