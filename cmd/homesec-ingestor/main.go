package main

import "github.com/oshokin/home-security/cmd/homesec-ingestor/cmd"

func main() {
	cmd.Execute()
}
