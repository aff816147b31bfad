package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/journal"
)

func (cli *commandLine) setWorkday(date string, isWorkday bool) error {
	date = core.CleanString(date)
	if _, err := time.Parse(journal.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	ov, err := cli.jnlRepo.SetOverride(context.Background(), journal.Override{Date: date, IsWorkday: isWorkday})
	if err != nil {
		return err
	}
	status := "working"
	if !ov.IsWorkday {
		status = "non-working"
	}
	fmt.Printf("%s is now a %s day\n", ov.Date, status)
	return nil
}
