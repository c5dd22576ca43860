package main

import (
	"github.com/larsks/gpiocdev/internal/api"
	"github.com/larsks/gpiocdev/internal/cli"
	_ "github.com/larsks/gpiocdev/internal/logsetup"
)

func main() {
	cli.StandardMain(func() cli.Configurable { return api.NewConfig() }, api.NewAPIHandler())
}
