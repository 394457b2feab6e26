package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
)

// importLevels loads a JSON array of levels and merges it into the ladder.
func (cli *commandLine) importLevels(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading levels file")
	}
	var levels []progression.Level
	if err = json.Unmarshal(data, &levels); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	if err = cli.progressSvc.ImportLevels(context.Background(), levels); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d levels imported\n", len(levels))
	return nil
}

func (cli *commandLine) exportFees(filter *fee.QueryFilter, format string) error {
	ctx := context.Background()
	if format == "csv" {
		return cli.feeSvc.Export(ctx, cli.out, filter)
	}

	records, err := cli.feeSvc.Query(ctx, filter, nil)
	if err != nil {
		return err
	}
	names := make(map[string]string)
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "STUDENT\tPERIOD\tFEE\tPAID\tBALANCE\tSTATUS\t")
	for _, rec := range records {
		name, ok := names[rec.StudentID]
		if !ok {
			stud, err := cli.studentSvc.GetByID(ctx, rec.StudentID)
			if err != nil {
				return errors.Wrap(err, "finding student")
			}
			name = stud.Name
			names[rec.StudentID] = name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			name, rec.Period(), rec.MonthlyFee.StringFixed(2), rec.PaidAmount.StringFixed(2), rec.BalanceDue.StringFixed(2), rec.Status)
	}
	sum := fee.Summarize(records)
	fmt.Fprintf(w, "\t\t\tcollected %s\tpending %s\toverdue %s\t\n",
		sum.Collected.StringFixed(2), sum.Pending.StringFixed(2), sum.Overdue.StringFixed(2))
	return w.Flush()
}

func (cli *commandLine) emailFees(filter *fee.QueryFilter, to string) error {
	n, err := cli.feeSvc.EmailExport(context.Background(), to, filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d fee records e-mailed to %s\n", n, to)
	return nil
}

func (cli *commandLine) ledger(studentID string, year, month int) error {
	ctx := context.Background()
	stud, err := cli.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	entry, err := cli.feeSvc.Ledger(ctx, stud.ID, year, month)
	if err != nil {
		return err
	}

	rec := entry.Record
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Student:\t%s (%s)\n", stud.Name, stud.Program)
	fmt.Fprintf(w, "Period:\t%s\n", rec.Period())
	if !entry.Exists {
		fmt.Fprintf(w, "Record:\tnone yet\n")
	}
	fmt.Fprintf(w, "Monthly fee:\t%s\n", rec.MonthlyFee.StringFixed(2))
	fmt.Fprintf(w, "Paid:\t%s\n", rec.PaidAmount.StringFixed(2))
	fmt.Fprintf(w, "Status:\t%s\n", rec.Status)
	fmt.Fprintf(w, "Carried forward:\t%s\n", entry.CarryForward.StringFixed(2))
	fmt.Fprintf(w, "Total due:\t%s\n", entry.TotalDue.StringFixed(2))
	return w.Flush()
}

func (cli *commandLine) sendReminders(year, month int) error {
	n, err := cli.feeSvc.SendReminders(context.Background(), year, month)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d reminders sent for %s\n", n, fee.Period{Year: year, Month: month})
	return nil
}
