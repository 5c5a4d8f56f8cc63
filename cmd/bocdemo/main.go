// Command bocdemo is a small CLI harness around the boc runtime: it builds
// a handful of regions, schedules a chain of behaviors against them, and
// reports what ran. It exists to exercise boc.Run/When/Wait end to end the
// way the teacher's mgmt binary exercises its own engine from cmd/mgmt
// (see DESIGN.md).
package main

import (
	"fmt"
	"os"

	"github.com/purpleidea/boc/cmd/bocdemo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
