package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/tartampluch/go-shamsi/internal/app"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
	"github.com/tartampluch/go-shamsi/internal/locale"
	"github.com/tartampluch/go-shamsi/internal/mcpserver"
)

// clock is replaced in tests.
var clock engine.Clock = engine.RealClock{}

// env is what every command needs once flags are parsed.
type env struct {
	settings *config.Settings
	path     string
	out      io.Writer
	tr       *locale.Translator
}

func (e *env) today() jalali.Date {
	return engine.Today(clock, e.settings.Calendar.Offset())
}

type actionFunc func(ctx context.Context, cmd *cli.Command, e *env) error

// newRootCommand builds the command tree. onStart configures logging once
// the flags are known.
func newRootCommand(onStart func(debug, daemon bool)) *cli.Command {
	wrap := func(daemon bool, fn actionFunc) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			onStart(cmd.Bool(config.FlagDebug), daemon)
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return fn(ctx, cmd, e)
		}
	}

	serve := wrap(true, runServe)

	return &cli.Command{
		Name:  config.CLIName,
		Usage: config.CLIUsage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.FlagConfig,
				Aliases: []string{"c"},
				Usage:   config.FlagDescConfig,
				Sources: cli.EnvVars(config.EnvConfigFile),
			},
			&cli.BoolFlag{Name: config.FlagDebug, Usage: config.FlagDescDebug},
			&cli.BoolFlag{Name: config.FlagVersion, Usage: config.FlagDescVersion},
			&cli.StringFlag{Name: config.FlagLang, Usage: config.FlagDescLang},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool(config.FlagVersion) {
				printVersion(cmd.Root().Writer)
				return nil
			}
			return serve(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:   config.CmdServe,
				Usage:  config.CmdDescServe,
				Action: serve,
			},
			{
				Name:  config.CmdConvert,
				Usage: config.CmdDescConvert,
				Commands: []*cli.Command{
					{
						Name:      config.CmdToJalali,
						Usage:     config.CmdDescToJalali,
						ArgsUsage: config.ArgDate,
						Action:    wrap(false, runToJalali),
					},
					{
						Name:      config.CmdToGregorian,
						Usage:     config.CmdDescToGregorian,
						ArgsUsage: config.ArgDate,
						Action:    wrap(false, runToGregorian),
					},
				},
			},
			{
				Name:      config.CmdMonth,
				Usage:     config.CmdDescMonth,
				ArgsUsage: config.ArgMonth,
				Action:    wrap(false, runMonth),
			},
			{
				Name:  config.CmdEvent,
				Usage: config.CmdDescEvent,
				Commands: []*cli.Command{
					{
						Name:      config.CmdEventSet,
						Usage:     config.CmdDescEventSet,
						ArgsUsage: config.ArgDate,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: config.FlagTitle, Usage: config.FlagDescTitle},
							&cli.BoolFlag{Name: config.FlagYearly, Usage: config.FlagDescYearly},
						},
						Action: wrap(false, runEventSet),
					},
					{
						Name:      config.CmdEventRemove,
						Usage:     config.CmdDescEventRemove,
						ArgsUsage: config.ArgDate,
						Action:    wrap(false, runEventRemove),
					},
					{
						Name:      config.CmdEventList,
						Usage:     config.CmdDescEventList,
						ArgsUsage: "[" + config.ArgDate + "]",
						Action:    wrap(false, runEventList),
					},
				},
			},
			{
				Name:  config.CmdSync,
				Usage: config.CmdDescSync,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: config.FlagOutput, Aliases: []string{"o"}, Usage: config.FlagDescOutput},
				},
				Action: wrap(false, runSync),
			},
			{
				Name:  config.CmdCredentials,
				Usage: config.CmdDescCredentials,
				Commands: []*cli.Command{
					{
						Name:  config.CmdCredSet,
						Usage: config.CmdDescCredSet,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: config.FlagUser, Usage: config.FlagDescUser},
						},
						Action: wrap(false, runCredentialsSet),
					},
				},
			},
			{
				Name:   config.CmdMCP,
				Usage:  config.CmdDescMCP,
				Action: wrap(false, runMCP),
			},
		},
	}
}

// loadEnv resolves the settings file, applies flag overrides and prepares
// the translator.
func loadEnv(cmd *cli.Command) (*env, error) {
	path := cmd.String(config.FlagConfig)
	if path == "" {
		if p, err := appFilePath(os.UserConfigDir, config.SettingsFile); err == nil {
			path = p
		}
	}

	s, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if lang := cmd.String(config.FlagLang); lang != "" {
		s.Calendar.Language = locale.Match(lang)
	}

	return &env{
		settings: s,
		path:     path,
		out:      cmd.Root().Writer,
		tr:       locale.New(s.Calendar.Language),
	}, nil
}

// openStore opens the event database; relative paths live in the user
// config directory.
func openStore(s *config.Settings) (*events.Store, error) {
	path := s.Store.Path
	if !filepath.IsAbs(path) {
		p, err := appFilePath(os.UserConfigDir, path)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return events.Open(path)
}

func dateArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s: %s %s", config.ErrArgs, cmd.Name, config.ArgDate)
	}
	return cmd.Args().First(), nil
}

func runServe(ctx context.Context, _ *cli.Command, e *env) error {
	logStartupInfo()
	slog.Info(config.MsgSettingsLoad,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyPath, e.path,
		config.LogKeyOffset, e.settings.Calendar.UTCOffset,
	)

	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// The watcher needs an existing directory.
	watchPath := e.path
	if _, err := os.Stat(filepath.Dir(watchPath)); err != nil {
		watchPath = ""
	}

	a := app.New(e.settings, watchPath, store, engine.NewHTTPFetcher(), engine.NewKeyringCredentials())
	if err := a.Run(ctx); err != nil {
		return err
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return nil
}

func runToJalali(_ context.Context, cmd *cli.Command, e *env) error {
	arg, err := dateArg(cmd)
	if err != nil {
		return err
	}
	g, err := jalali.ParseGregorian(arg)
	if err != nil {
		return err
	}
	d, err := jalali.ToJalali(g)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.out, config.MsgConvertOutput, g, d, e.tr.FormatDate(d))
	return err
}

func runToGregorian(_ context.Context, cmd *cli.Command, e *env) error {
	arg, err := dateArg(cmd)
	if err != nil {
		return err
	}
	d, err := jalali.ParseDate(arg)
	if err != nil {
		return err
	}
	g, err := jalali.ToGregorian(d)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.out, config.MsgConvertOutput, d, g, e.tr.FormatDate(d))
	return err
}

// parseMonthArg reads "YYYY/MM" or "YYYY-MM".
func parseMonthArg(s string) (int, int, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(strings.TrimSpace(s), sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q is not %s", jalali.ErrInvalidDate, s, config.ArgMonth)
	}
	jy, err1 := strconv.Atoi(parts[0])
	jm, err2 := strconv.Atoi(parts[1])
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", jalali.ErrInvalidDate, s, err)
	}
	if _, err := jalali.MonthLength(jy, jm); err != nil {
		return 0, 0, err
	}
	return jy, jm, nil
}

func runMonth(ctx context.Context, cmd *cli.Command, e *env) error {
	today := e.today()
	jy, jm := today.Year, today.Month
	switch cmd.Args().Len() {
	case 0:
	case 1:
		var err error
		if jy, jm, err = parseMonthArg(cmd.Args().First()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: %s %s", config.ErrArgs, cmd.Name, config.ArgMonth)
	}

	var has jalali.EventPredicate
	if store, err := openStore(e.settings); err == nil {
		defer func() { _ = store.Close() }()
		set, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}
		has = set.Has
	} else {
		slog.Warn(config.ErrStoreOpen, config.LogKeyComponent, config.CompMain, config.LogKeyError, err)
	}

	grid, err := jalali.BuildMonthGrid(jy, jm, today, has)
	if err != nil {
		return err
	}
	return renderMonth(e.out, e.tr, jy, jm, &grid)
}

// renderMonth prints the grid as a table. Days of the adjacent months are
// bracketed, today is starred and days with events carry a plus sign.
func renderMonth(w io.Writer, tr *locale.Translator, jy, jm int, grid *jalali.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s %s\n", tr.MonthName(jm), tr.Number(jy))

	header := make([]string, jalali.WeekLength)
	for i := range header {
		header[i] = tr.WeekdayShort(i)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, week := range grid.Weeks() {
		row := make([]string, len(week))
		for i, c := range week {
			label := tr.Number(c.Date.Day)
			if c.IsToday {
				label += config.MarkToday
			}
			if c.HasEvent {
				label += config.MarkEvent
			}
			if !c.InMonth {
				label = "(" + label + ")"
			}
			row[i] = label
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	return tw.Flush()
}

func runEventSet(ctx context.Context, cmd *cli.Command, e *env) error {
	arg, err := dateArg(cmd)
	if err != nil {
		return err
	}
	d, err := jalali.ParseDate(arg)
	if err != nil {
		return err
	}
	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	title := strings.TrimSpace(cmd.String(config.FlagTitle))
	if !cmd.Bool(config.FlagYearly) {
		return store.SetNote(ctx, d, title)
	}

	uid := config.YearlyPrefix + d.Key()
	if title == "" {
		if err := store.Delete(ctx, uid); err != nil && !errors.Is(err, events.ErrNotFound) {
			return err
		}
		return nil
	}
	return store.Put(ctx, events.Event{
		UID:       uid,
		Date:      d,
		Title:     title,
		Recurring: true,
		Source:    config.EventSourceManual,
	})
}

func runEventRemove(ctx context.Context, cmd *cli.Command, e *env) error {
	arg, err := dateArg(cmd)
	if err != nil {
		return err
	}
	d, err := jalali.ParseDate(arg)
	if err != nil {
		return err
	}
	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.DeleteNote(ctx, d)
}

func runEventList(ctx context.Context, cmd *cli.Command, e *env) error {
	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var list []events.Event
	switch cmd.Args().Len() {
	case 0:
		list, err = store.List(ctx)
	case 1:
		var d jalali.Date
		if d, err = jalali.ParseDate(cmd.Args().First()); err != nil {
			return err
		}
		list, err = store.ForDate(ctx, d)
	default:
		return fmt.Errorf("%s: %s [%s]", config.ErrArgs, cmd.Name, config.ArgDate)
	}
	if err != nil {
		return err
	}
	return printEvents(e.out, list)
}

func printEvents(w io.Writer, list []events.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ev := range list {
		kind := ev.Source
		if ev.Recurring {
			kind += "," + config.FlagYearly
		}
		fmt.Fprintf(tw, config.MsgEventLine, ev.Date, kind, ev.Title)
	}
	return tw.Flush()
}

func runSync(ctx context.Context, cmd *cli.Command, e *env) error {
	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	a := app.New(e.settings, "", store, engine.NewHTTPFetcher(), engine.NewKeyringCredentials())
	a.SetClock(clock)
	ics, contacts, today, err := a.Sync(ctx)
	if err != nil {
		return err
	}

	if out := cmd.String(config.FlagOutput); out != "" {
		if err := os.WriteFile(out, ics, config.FilePermUserRW); err != nil {
			return err
		}
		fmt.Fprintf(e.out, config.MsgFeedWritten, out)
	} else if _, err := e.out.Write(ics); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().ErrWriter, config.MsgSyncOutput, len(contacts), today)
	return nil
}

func runCredentialsSet(_ context.Context, cmd *cli.Command, e *env) error {
	user := cmd.String(config.FlagUser)
	if user == "" {
		user = e.settings.Source.User
	}
	if user == "" {
		return errors.New(config.ErrUserRequired)
	}

	fmt.Fprint(os.Stderr, config.MsgPasswordPrompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrPasswordRead, err)
	}
	if len(password) == 0 {
		return errors.New(config.ErrPasswordEmpty)
	}

	if err := engine.NewKeyringCredentials().Set(user, string(password)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, config.MsgPasswordSaved)
	return err
}

func runMCP(_ context.Context, _ *cli.Command, e *env) error {
	store, err := openStore(e.settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	slog.Info(config.MsgMCPStarting, config.LogKeyComponent, config.CompMCP)
	return mcpserver.New(clock, e.settings.Calendar.Offset(), store).ServeStdio()
}
