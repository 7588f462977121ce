package main

import "github.com/oshokin/oneshot-layer/cmd/oneshotctl/cmd"

func main() {
	cmd.Execute()
}
