package main

import (
	"github.com/meetmesh/meetmesh/internal/cli"
	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/logging"
)

func main() {
	logging.InitQuiet()
	config.LoadDotEnv()
	cli.Execute()
}
