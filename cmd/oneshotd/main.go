package main

import "github.com/oshokin/oneshot-layer/cmd/oneshotd/cmd"

func main() {
	cmd.Execute()
}
