package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/larsks/gpiocdev/internal/cli"
	"github.com/larsks/gpiocdev/internal/gpioctl"
	_ "github.com/larsks/gpiocdev/internal/logsetup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.SubCommandMain(ctx, func() cli.Configurable { return gpioctl.NewConfig() }, gpioctl.NewHandler())
}
