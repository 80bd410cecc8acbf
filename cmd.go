package main

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Backup  struct {
		Config string `help:"config file path" short:"c" required:""`
	} `cmd:"" help:"Run a backup now."`
	Restore struct {
		Config  string `help:"config file path" short:"c" required:""`
		ID      string `help:"backup id to restore, latest if omitted" short:"i"`
		Confirm string `help:"confirmation token, must match the backup id being restored"`
	} `cmd:"" help:"Replace the database with a stored backup."`
	List struct {
		Config string `help:"config file path" short:"c" required:""`
	} `cmd:"" help:"List stored backups."`
	Daemon struct {
		Config string `help:"config file path" short:"c" required:""`
	} `cmd:"" help:"Run scheduled backups."`
}
