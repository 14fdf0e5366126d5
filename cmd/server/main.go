package main

import (
	"github.com/alecthomas/kong"
	"github.com/tenauth/tenauth/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug            bool `help:"Enable debug mode."`
		Version          kong.VersionFlag
		Serve            commands.ServeCmd            `cmd:"" help:"Start the authentication server"`
		CreateSuperadmin commands.CreateSuperadminCmd `cmd:"" help:"Create or reset the superadmin account"`
	}
)

func main() {
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		})
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
