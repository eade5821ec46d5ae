package main

import "github.com/oshokin/home-security/cmd/homesec-ctl/cmd"

func main() {
	cmd.Execute()
}
