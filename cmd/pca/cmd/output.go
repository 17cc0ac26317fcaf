package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	s := string(data) + "\n"
	if isTerminal() {
		return quick.Highlight(os.Stdout, s, "json", "terminal256", "monokai")
	}
	fmt.Print(s)
	return nil
}
