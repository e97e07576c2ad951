// Package main implements the propdesk CLI tool.
// It signs users in to the property management backend and follows their notifications.
package main

import "github.com/propdesk/propdesk/cmd/propdesk/cmd"

func main() {
	cmd.Execute()
}
