package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/breaktimed/cmd/breaktimed/commands"
	"git.home.luguber.info/inful/breaktimed/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("breaktimed"),
		kong.Description("Wayland break enforcement daemon"),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{})
	ctx.FatalIfErrorf(err)
}
