// The shuttle command analyzes the memory banking of accelerator kernels and
// serves the recorded decisions for inspection.
package main

import "github.com/shuttlelab/shuttle/shuttle/cmd"

func main() {
	cmd.Execute()
}
