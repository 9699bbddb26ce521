// Command tradelic is the operator console for a license server. It
// covers the full admin surface: listing, lifecycle changes, fleet
// statistics and CSV export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"tradelic.app/cloud/client"
	"tradelic.app/cloud/export"
	"tradelic.app/cloud/internal/alerts"
	"tradelic.app/cloud/models"
)

const usage = `Usage: tradelic <command> [flags]

Commands:
  list      List licenses, optionally filtered
  show      Show one license in full
  create    Create a new license
  update    Edit client fields of a license
  extend    Extend a license by whole months
  block     Block a license
  unblock   Unblock a license
  delete    Delete a license
  stats     Fleet statistics, optionally emailed
  events    Security and lifecycle event log
  export    Write the license list as CSV

Environment:
  SERVER_URL  license server base URL (default http://localhost:8080)
  API_KEY     admin API key (required)
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		fatal("API_KEY environment variable is required")
	}

	c := client.New(serverURL, apiKey)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "list":
		err = cmdList(ctx, c, os.Args[2:])
	case "show":
		err = cmdShow(ctx, c, os.Args[2:])
	case "create":
		err = cmdCreate(ctx, c, os.Args[2:])
	case "update":
		err = cmdUpdate(ctx, c, os.Args[2:])
	case "extend":
		err = cmdExtend(ctx, c, os.Args[2:])
	case "block":
		err = cmdBlock(ctx, c, os.Args[2:], true)
	case "unblock":
		err = cmdBlock(ctx, c, os.Args[2:], false)
	case "delete":
		err = cmdDelete(ctx, c, os.Args[2:])
	case "stats":
		err = cmdStats(ctx, c, os.Args[2:])
	case "events":
		err = cmdEvents(ctx, c, os.Args[2:])
	case "export":
		err = cmdExport(ctx, c, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "tradelic:", msg)
	os.Exit(1)
}

func cmdList(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	robot := fs.String("robot", "", "filter by robot name")
	search := fs.String("search", "", "substring filter over identifying fields")
	fs.Parse(args)

	licenses, err := c.Licenses(ctx, client.ListOptions{Status: *status, RobotName: *robot})
	if err != nil {
		return err
	}
	if *search != "" {
		licenses = models.Search(licenses, *search)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCLIENT\tSTATUS\tROBOT\tBROKER\tBALANCE\tDAYS LEFT")
	for _, l := range licenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.Key, l.ClientName, l.StatusDisplay(), l.RobotName,
			l.BrokerShort(), l.FormatBalance(), l.DaysLeftText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d licenses\n", len(licenses))
	return nil
}

func cmdShow(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	fs.Parse(args)
	key, err := requireKey(fs)
	if err != nil {
		return err
	}

	l, err := c.License(ctx, key)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Key:\t%s\n", l.Key)
	fmt.Fprintf(tw, "Client:\t%s\n", l.ClientName)
	if l.ClientContact != "" {
		fmt.Fprintf(tw, "Contact:\t%s\n", l.ClientContact)
	}
	if l.ClientTelegram != "" {
		fmt.Fprintf(tw, "Telegram:\t%s\n", l.ClientTelegram)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", l.StatusDisplay())
	fmt.Fprintf(tw, "Robot:\t%s %s\n", l.RobotName, l.RobotVersion)
	fmt.Fprintf(tw, "Account:\t%s (%s, %s)\n", l.AccountOwner, l.AccountType, l.BrokerShort())
	fmt.Fprintf(tw, "Balance:\t%s\n", l.FormatBalance())
	fmt.Fprintf(tw, "Created:\t%s\n", dateOrDash(l.CreatedDate))
	fmt.Fprintf(tw, "Activated:\t%s\n", dateOrDash(l.ActivationDate))
	fmt.Fprintf(tw, "Expires:\t%s (%s)\n", dateOrDash(l.ExpiryDate), l.DaysLeftText)
	fmt.Fprintf(tw, "Last check:\t%s\n", dateOrDash(l.LastCheck))
	fmt.Fprintf(tw, "Checks:\t%d (%d failed)\n", l.CheckCount, l.FailedChecks)
	if l.HasProblems {
		fmt.Fprintf(tw, "Problems:\t%v\n", l.Problems)
	}
	if l.Notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", l.Notes)
	}
	return tw.Flush()
}

func cmdCreate(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("client", "", "client name (required)")
	contact := fs.String("contact", "", "client contact")
	telegram := fs.String("telegram", "", "client telegram handle")
	robot := fs.String("robot", "", "robot name")
	months := fs.Int("months", 1, "validity in months from activation")
	notes := fs.String("notes", "", "free-form notes")
	universal := fs.Bool("universal", false, "valid for any robot")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("-client is required")
	}

	l, err := c.Create(ctx, models.CreateLicenseRequest{
		ClientName:     *name,
		ClientContact:  *contact,
		ClientTelegram: *telegram,
		RobotName:      *robot,
		Months:         *months,
		Notes:          *notes,
		Universal:      *universal,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s for %s (%d months)\n", l.Key, l.ClientName, *months)
	return nil
}

func cmdUpdate(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	name := fs.String("client", "", "new client name")
	contact := fs.String("contact", "", "new client contact")
	telegram := fs.String("telegram", "", "new telegram handle")
	notes := fs.String("notes", "", "new notes")
	fs.Parse(args)
	key, err := requireKey(fs)
	if err != nil {
		return err
	}

	var req models.UpdateLicenseRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "client":
			req.ClientName = name
		case "contact":
			req.ClientContact = contact
		case "telegram":
			req.ClientTelegram = telegram
		case "notes":
			req.Notes = notes
		}
	})
	if req == (models.UpdateLicenseRequest{}) {
		return fmt.Errorf("nothing to update")
	}

	l, err := c.Update(ctx, key, req)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s\n", l.Key)
	return nil
}

func cmdExtend(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("extend", flag.ExitOnError)
	months := fs.Int("months", 1, "months to add")
	fs.Parse(args)
	key, err := requireKey(fs)
	if err != nil {
		return err
	}

	l, err := c.Extend(ctx, key, *months)
	if err != nil {
		return err
	}
	fmt.Printf("extended %s, now %s\n", l.Key, l.DaysLeftText)
	return nil
}

func cmdBlock(ctx context.Context, c *client.Client, args []string, block bool) error {
	name := "block"
	if !block {
		name = "unblock"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Parse(args)
	key, err := requireKey(fs)
	if err != nil {
		return err
	}

	if block {
		err = c.Block(ctx, key)
	} else {
		err = c.Unblock(ctx, key)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%sed %s\n", name, key)
	return nil
}

func cmdDelete(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	force := fs.Bool("force", false, "skip confirmation")
	fs.Parse(args)
	key, err := requireKey(fs)
	if err != nil {
		return err
	}

	if !*force {
		fmt.Printf("delete %s permanently? [y/N] ", key)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return nil
		}
	}

	if err := c.Delete(ctx, key); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", key)
	return nil
}

func cmdStats(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	email := fs.String("email", "", "also send the alert digest to this address")
	fs.Parse(args)

	stats, err := c.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Print(stats.Report())

	if *email != "" {
		if err := alerts.Email(*email, stats); err != nil {
			return fmt.Errorf("sending digest: %w", err)
		}
		fmt.Printf("digest sent to %s\n", *email)
	}
	return nil
}

func cmdEvents(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	days := fs.Int("days", 7, "trailing window in days")
	fs.Parse(args)

	events, err := c.Events(ctx, *days)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPRIORITY\tTYPE\tLICENSE\tDESCRIPTION")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Format("2006-01-02 15:04"), ev.Priority, ev.Type, ev.LicenseKey, ev.Description)
	}
	return tw.Flush()
}

func cmdExport(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output file (default stdout)")
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	licenses, err := c.Licenses(ctx, client.ListOptions{Status: *status})
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := export.CSV(w, licenses); err != nil {
		return err
	}
	if *out != "" {
		fmt.Printf("exported %d licenses to %s\n", len(licenses), *out)
	}
	return nil
}

func requireKey(fs *flag.FlagSet) (string, error) {
	if fs.NArg() < 1 {
		return "", fmt.Errorf("license key argument is required")
	}
	return fs.Arg(0), nil
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format("2006-01-02 15:04")
}
