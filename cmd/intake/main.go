// Command intake stores, loads, and repairs debt-counselling intake records.
package main

import "github.com/mesh-intelligence/intake/internal/cli"

func main() {
	cli.Execute()
}
