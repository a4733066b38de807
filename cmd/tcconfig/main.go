// Command tcconfig reads and reconciles the configuration of a Tomcat
// server instance.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
