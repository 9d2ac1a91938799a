package main

import (
	"context"

	"github.com/arencloud/courtside/cmd/courtside/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
