// chatgate is an authenticated WebSocket chat gateway.
package main

import "github.com/chat-gate/chatgate/cmd/chatgate/cmd"

func main() {
	cmd.Execute()
}
