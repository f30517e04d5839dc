// Command employeedir serves the employee directory API and runs search
// benchmarks.
package main

import (
	"os"

	"github.com/JakeFAU/employee-directory/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
