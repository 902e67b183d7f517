// Command weightctl records and reviews body weight from the terminal, either
// in a local database or against a weightlog server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"weightlog/internal/api"
	"weightlog/internal/app"
	"weightlog/internal/client"
	"weightlog/internal/config"
	"weightlog/internal/domain"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const usage = `usage: weightctl [-db file | -server url] <command> [flags]

commands:
  add [-date YYYY-MM-DD] [-unit KG|JIN] <weight>   record a weight (today by default)
  list [-days N | -from DAY -to DAY]             list records
  stats [-days N]                                statistics, BMI and progress to target
  delete <id>                                    delete a record
  settings [-height cm] [-target kg] [-unit U] [-reminder HH:MM] [-reminders on|off]
  remind                                         print the daily reminder (local database)
  register -u name -p password                   create an account on the server
  login -u name -p password                      sign in to the server
  passwd -old password -new password             change the server password
  logout                                         sign out of the server
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "weightctl:", err)
		os.Exit(1)
	}
}

type cli struct {
	out    io.Writer
	log    logrus.FieldLogger
	be     backend
	remote *client.Client
}

func run(ctx context.Context, args []string, out io.Writer) (err error) {
	global := flag.NewFlagSet("weightctl", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usage) }
	dbPath := global.String("db", config.DefaultDataFile(), "local database file")
	server := global.String("server", os.Getenv("WEIGHTLOG_SERVER"), "weightlog server URL; empty uses the local database")
	credsPath := global.String("credentials", defaultCredentialsFile(), "where the server token is kept")
	verbose := global.Bool("v", false, "verbose logging")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	c := &cli{out: out, log: logger}
	if *server != "" {
		c.remote = client.New(*server, client.WithTokenStore(client.FileTokenStore{Path: *credsPath}))
		c.be = remoteBackend{c: c.remote}
	} else {
		local, err := openLocal(*dbPath, logger)
		if err != nil {
			return err
		}
		c.be = local
	}
	defer func() { err = multierr.Append(err, c.be.Close()) }()

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "add":
		return c.add(ctx, cmdArgs)
	case "list":
		return c.list(ctx, cmdArgs)
	case "stats":
		return c.stats(ctx, cmdArgs)
	case "delete":
		return c.delete(ctx, cmdArgs)
	case "settings":
		return c.settings(ctx, cmdArgs)
	case "remind":
		return c.remind(ctx)
	case "register", "login", "passwd", "logout":
		return c.account(ctx, cmd, cmdArgs)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func defaultCredentialsFile() string {
	return filepath.Join(filepath.Dir(config.DefaultDataFile()), "credentials.json")
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	day := fs.String("date", "", "day of the measurement (YYYY-MM-DD)")
	unitFlag := fs.String("unit", "", "unit of the weight; defaults to the preferred unit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("add: expected exactly one weight")
	}
	value, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return fmt.Errorf("add: %w", domain.ErrInvalidWeight)
	}

	prefs, err := c.be.Settings(ctx)
	if err != nil {
		return err
	}
	unit := prefs.Unit
	if *unitFlag != "" {
		if unit, err = domain.ParseUnit(*unitFlag); err != nil {
			return err
		}
	}

	obs, err := c.be.Add(ctx, *day, domain.ToKg(value, unit))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "recorded %s for %s (id %d)\n", domain.FormatWeight(domain.Convert(obs.WeightKg, prefs.Unit), prefs.Unit), obs.Day, obs.ID)
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	days := fs.Int("days", app.DefaultRangeDays, "trailing window in days, e.g. "+presets())
	from := fs.String("from", "", "first day (YYYY-MM-DD)")
	to := fs.String("to", "", "last day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var sum *app.Summary
	var err error
	if *from != "" || *to != "" {
		if *from == "" || *to == "" {
			return errors.New("list: -from and -to go together")
		}
		sum, err = c.be.Between(ctx, *from, *to)
	} else {
		sum, err = c.be.Records(ctx, *days)
	}
	if err != nil {
		return err
	}
	prefs, err := c.be.Settings(ctx)
	if err != nil {
		return err
	}

	if len(sum.Records) == 0 {
		fmt.Fprintln(c.out, "no records")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tWEIGHT")
	for _, o := range sum.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Day, domain.FormatWeight(domain.Convert(o.WeightKg, prefs.Unit), prefs.Unit))
	}
	return tw.Flush()
}

func (c *cli) stats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	days := fs.Int("days", app.DefaultRangeDays, "trailing window in days, e.g. "+presets())
	if err := fs.Parse(args); err != nil {
		return err
	}
	sum, err := c.be.Records(ctx, *days)
	if err != nil {
		return err
	}
	prefs, err := c.be.Settings(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, formatStats(sum, prefs, app.ClampDays(*days)))
	if sum.Statistics == nil {
		latest, err := c.be.Latest(ctx)
		if err != nil {
			return err
		}
		if latest != nil {
			fmt.Fprintf(c.out, "last record %s on %s\n", domain.FormatWeight(domain.Convert(latest.WeightKg, prefs.Unit), prefs.Unit), latest.Day)
		}
	}
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("delete: expected a record id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("delete: invalid id %q", args[0])
	}
	if err := c.be.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted record %d\n", id)
	return nil
}

func (c *cli) settings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	height := fs.Float64("height", 0, "height in cm")
	target := fs.Float64("target", 0, "target weight in kg")
	unit := fs.String("unit", "", "preferred unit (KG or JIN)")
	reminder := fs.String("reminder", "", "daily reminder time (HH:MM)")
	reminders := fs.String("reminders", "", "daily reminder on or off")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var upd api.SettingsUpdate
	var changed bool
	var err error
	fs.Visit(func(f *flag.Flag) {
		changed = true
		switch f.Name {
		case "height":
			upd.Height = height
		case "target":
			upd.TargetWeight = target
		case "unit":
			upd.WeightUnit = unit
		case "reminder":
			upd.ReminderTime = reminder
		case "reminders":
			on, perr := parseSwitch(*reminders)
			if perr != nil {
				err = perr
			}
			upd.ReminderEnabled = &on
		}
	})
	if err != nil {
		return err
	}
	if changed {
		if err := c.be.UpdateSettings(ctx, upd); err != nil {
			return err
		}
	}

	prefs, err := c.be.Settings(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, formatSettings(prefs))
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("reminders: want on or off, got %q", s)
}

// remind prints the daily reminder while it runs.
func (c *cli) remind(ctx context.Context) error {
	local, ok := c.be.(*localBackend)
	if !ok {
		return errors.New("remind: reminders from a server are sent by the server")
	}
	prefs, err := local.Settings(ctx)
	if err != nil {
		return err
	}
	if !prefs.ReminderEnabled {
		return errors.New("remind: reminders are off; enable them with: settings -reminders on")
	}
	fmt.Fprintf(c.out, "reminding daily at %s, press Ctrl-C to stop\n", prefs.ReminderTime())

	s := app.NewScheduler(local.store, printNotifier{out: c.out}, c.log)
	return s.Run(ctx)
}

type printNotifier struct {
	out io.Writer
}

func (n printNotifier) Notify(_ context.Context, p domain.UserPreferences) error {
	_, err := fmt.Fprintf(n.out, "%s  time to record today's weight\n", p.ReminderTime())
	return err
}

func (c *cli) account(ctx context.Context, cmd string, args []string) error {
	if c.remote == nil {
		return fmt.Errorf("%s: needs -server or WEIGHTLOG_SERVER", cmd)
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", os.Getenv("WEIGHTLOG_PASSWORD"), "password")
	oldPass := fs.String("old", "", "current password")
	newPass := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "register":
		auth, err := c.remote.Register(ctx, *user, *pass, *pass)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "registered and signed in as %s\n", auth.Username)
	case "login":
		auth, err := c.remote.Login(ctx, *user, *pass)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "signed in as %s\n", auth.Username)
	case "passwd":
		if err := c.remote.ChangePassword(ctx, *oldPass, *newPass); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "password changed")
	case "logout":
		if err := c.remote.Logout(ctx); err != nil {
			c.log.WithError(err).Warn("server logout failed; local token removed")
		}
		fmt.Fprintln(c.out, "signed out")
	}
	return nil
}
