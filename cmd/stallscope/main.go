// Command stallscope runs workloads on an observed event loop and reports the
// synchronous blocks that exceed a threshold.
package main

func main() {
	Execute()
}
