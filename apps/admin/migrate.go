package main

import (
	"errors"

	"github.com/trezcool/goose"

	"github.com/EllowDigital/GSAI-IN-sub000/fs"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

var errNoDatabase = errors.New("migrations need a postgres database (in-memory store configured)")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, database.MigrationsDir, arguments...)
}
