// Command latencysim measures the latency of a timestamped packet stream over
// a simulated point-to-point TCP link.
package main

import "github.com/HaseebLUMS/tree-sim/latencysim/cmd"

func main() {
	cmd.Execute()
}
