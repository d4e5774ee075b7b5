package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aioc/hospital-console/internal/config"
	"github.com/aioc/hospital-console/internal/domain/account"
	"github.com/aioc/hospital-console/internal/domain/calendar"
	"github.com/aioc/hospital-console/internal/domain/scheduling"
	"github.com/aioc/hospital-console/internal/platform/session"
)

// calendarCmd prints one month of appointments from the terminal, signed in
// as staff.
func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the appointment calendar for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			day, _ := cmd.Flags().GetInt("day")
			patient, _ := cmd.Flags().GetString("patient")
			status, _ := cmd.Flags().GetString("status")
			username, _ := cmd.Flags().GetString("username")

			q, err := calendarQuery(month, day, patient, status)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if q.Location, err = cfg.Location(); err != nil {
				return err
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

			if username == "" {
				username = os.Getenv("CONSOLE_USERNAME")
			}
			if username == "" {
				return fmt.Errorf("--username or CONSOLE_USERNAME is required")
			}
			password, err := readPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			up := newUpstreams(cfg, logger)
			tok, err := account.NewClient(up.login).Login(ctx, session.SlotStaff, username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fullName := ""
			if tok.FullName != nil {
				fullName = *tok.FullName
			}
			cred, err := session.NewTokenInspector([]byte(cfg.AuthSecretKey)).Credential(tok.AccessToken, tok.Username, fullName, tok.Role)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			sess := session.New(cfg.SessionTTL)
			sess.Set(session.SlotStaff, cred)

			schedClient := scheduling.NewClient(up.scheduling)
			page, err := calendar.NewLoader(schedClient.Appointments(), calendar.NewViews(), logger).Load(ctx, sess, q)
			if err != nil {
				return err
			}
			return writeCalendar(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().String("month", "", "Month to show as YYYY-MM (default: current month)")
	cmd.Flags().Int("day", 0, "Day of the month to list (default: today in the current month, else the 1st)")
	cmd.Flags().String("patient", "", "Only list appointments whose patient name contains this text")
	cmd.Flags().String("status", "all", "Only list appointments with this status")
	cmd.Flags().String("username", "", "Staff username (default: CONSOLE_USERNAME)")
	return cmd
}

// calendarQuery turns the command flags into a loader query.
func calendarQuery(month string, day int, patient, status string) (calendar.Query, error) {
	q := calendar.Query{Day: day, Patient: patient}
	t := time.Now()
	if month != "" {
		var err error
		if t, err = time.Parse("2006-01", month); err != nil {
			return calendar.Query{}, fmt.Errorf("--month must be YYYY-MM, got %q", month)
		}
	}
	q.Year, q.MonthIndex = t.Year(), int(t.Month())-1
	if day < 0 || day > 31 {
		return calendar.Query{}, fmt.Errorf("--day must be between 1 and 31")
	}
	sf, err := calendar.ParseStatusFilter(status)
	if err != nil {
		return calendar.Query{}, err
	}
	q.Status = sf
	return q, nil
}

// readPassword takes CONSOLE_PASSWORD, or prompts when stdin is a terminal.
func readPassword(prompt io.Writer) (string, error) {
	if p := os.Getenv("CONSOLE_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeCalendar renders the month grid with per-day counts, then the day's
// filtered appointments.
func writeCalendar(w io.Writer, p *calendar.Page) error {
	bw := bufio.NewWriter(w)
	title := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	fmt.Fprintf(bw, "%s  (%d appointments)\n", title, p.Total)
	if p.Error != "" {
		fmt.Fprintf(bw, "warning: %s\n", p.Error)
	}
	for _, wd := range p.Weekdays {
		fmt.Fprintf(bw, "%-8s", wd)
	}
	fmt.Fprintln(bw)
	for _, week := range p.Weeks {
		for _, d := range week {
			cell := ""
			if d != calendar.NoDay {
				cell = fmt.Sprintf("%2d", d)
				if n := p.DayCounts[calendar.DateKey(p.Year, p.Month-1, d)]; n > 0 {
					cell += fmt.Sprintf("(%d)", n)
				}
			}
			fmt.Fprintf(bw, "%-8s", cell)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintf(bw, "\n%s: %d appointment(s)\n", p.Selected, p.Filtered)
	for _, a := range p.Appointments {
		fmt.Fprintf(bw, "  %s  %-24s %-20s %-20s %s\n", a.Time, a.Patient, a.Type, a.Doctor, a.Status)
	}
	return bw.Flush()
}
