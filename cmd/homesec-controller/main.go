package main

import "github.com/oshokin/home-security/cmd/homesec-controller/cmd"

func main() {
	cmd.Execute()
}
