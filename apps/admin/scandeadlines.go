package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) scanDeadlines(days int) error {
	report, err := cli.scanner.Scan(context.Background(), days)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d reminders sent, %d failed, %d skipped without phone, %d already delivered\n",
		report.Today, report.Sent, report.Failed, report.SkippedNoPhone, report.SkippedDelivered)
	for _, r := range report.Reminders {
		_, _ = fmt.Fprintf(cli.out, "  %s <%s>: %s (%d deadlines)\n", r.TeacherName, r.PhoneNumber, r.ProjectTitle, len(r.Items))
	}
	return nil
}
