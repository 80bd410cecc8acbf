package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
)

func listCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	eng, _, err := buildEngine(ctx, args.List.Config, logger)
	if err != nil {
		return err
	}

	summaries, err := eng.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no backups found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSIZE\tTIER\tLOCATION")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.CreatedAt.Format(time.RFC3339),
			units.HumanSize(float64(s.Size)),
			s.Tier,
			location(s.Local, s.Remote),
		)
	}
	return w.Flush()
}

func location(local, remote bool) string {
	switch {
	case local && remote:
		return "local+remote"
	case remote:
		return "remote"
	default:
		return "local"
	}
}
