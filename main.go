package main

import "github.com/jslade/jobsync/cmd"

func main() {
	cmd.Execute()
}
