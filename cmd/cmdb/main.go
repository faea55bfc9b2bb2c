// Command cmdb is the command-line interface to the configuration
// management database.
package main

import "github.com/mesh-intelligence/cmdb/internal/cli"

func main() {
	cli.Execute()
}
