package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable
	nowFunc        = time.Now                                                  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sql.DB // nil when running in memory
	out         io.Writer
	studentSvc  *student.Service
	feeSvc      *fee.Service
	progressSvc *progression.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                                      - run a goose migration command (up, down, status, ...)")
	fmt.Println("  import-levels -file PATH                                    - import belt levels from a JSON file")
	fmt.Println("  export-fees [-student ID] [-year Y] [-month M] [-format F]  - export fee records (csv|table)")
	fmt.Println("              [-email ADDR]                                   - e-mail the export as a CSV attachment instead")
	fmt.Println("  ledger -student ID [-year Y] [-month M]                     - show a student's dues for a month")
	fmt.Println("  send-reminders [-year Y] [-month M]                         - e-mail fee reminders")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	now := nowFunc().UTC()

	importCmd := flag.NewFlagSet("import-levels", flag.ExitOnError)
	importFile := importCmd.String("file", "", "Path of a JSON array of levels.")

	exportCmd := flag.NewFlagSet("export-fees", flag.ExitOnError)
	exportStudent := exportCmd.String("student", "", "Only export the records of this student.")
	exportYear := exportCmd.Int("year", 0, "Only export this year.")
	exportMonth := exportCmd.Int("month", 0, "Only export this month.")
	exportFormat := exportCmd.String("format", "", "csv or table (default: table on a terminal, csv otherwise)")
	exportEmail := exportCmd.String("email", "", "E-mail the CSV export to this address instead of printing it.")

	ledgerCmd := flag.NewFlagSet("ledger", flag.ExitOnError)
	ledgerStudent := ledgerCmd.String("student", "", "The student's ID.")
	ledgerYear := ledgerCmd.Int("year", now.Year(), "Year of the period.")
	ledgerMonth := ledgerCmd.Int("month", int(now.Month()), "Month of the period.")

	remindCmd := flag.NewFlagSet("send-reminders", flag.ExitOnError)
	remindYear := remindCmd.Int("year", now.Year(), "Year of the period.")
	remindMonth := remindCmd.Int("month", int(now.Month()), "Month of the period.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import-levels":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importLevels(*importFile)
	case "export-fees":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		filter := &fee.QueryFilter{StudentID: *exportStudent, Year: *exportYear, Month: *exportMonth}
		if *exportEmail != "" {
			return cli.emailFees(filter, *exportEmail)
		}
		format := *exportFormat
		switch format {
		case "":
			format = "csv"
			if isTerminalFunc() {
				format = "table"
			}
		case "csv", "table":
		default:
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportFees(filter, format)
	case "ledger":
		if err := ledgerCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ledgerStudent == "" {
			ledgerCmd.Usage()
			return errHelp
		}
		return cli.ledger(*ledgerStudent, *ledgerYear, *ledgerMonth)
	case "send-reminders":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sendReminders(*remindYear, *remindMonth)
	default:
		cli.printUsage()
		return errHelp
	}
}
