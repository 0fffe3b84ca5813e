// Command portal is the caregiver-facing EVV client: log in, review
// scheduled appointments, verify visits with check-in/check-out and file
// activity notes against a remote EVV backend.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/farganamar/evv-portal/internal/appointment"
	"github.com/farganamar/evv-portal/internal/config"
	"github.com/farganamar/evv-portal/internal/gateway"
	"github.com/farganamar/evv-portal/internal/geo"
	"github.com/farganamar/evv-portal/internal/model"
	"github.com/farganamar/evv-portal/internal/session"
	"github.com/farganamar/evv-portal/internal/visit"
)

const usage = `usage: portal <command> [flags]

commands:
  login <username>        exchange a username for a session
  logout                  clear the stored session
  whoami                  show the identity decoded from the session token
  seed [-count N]         seed demo appointments (dev aid)
  list [-status S]        list appointments (default SCHEDULED)
  show <appointment-id>   show one appointment with its visit log
  checkin <appointment-id> [-code C] [-note N] [-lat X -lng Y]
  checkout <appointment-id> [-note N] [-lat X -lng Y]
  note <appointment-id> -type T -text TEXT
`

type app struct {
	cfg      config.Config
	sessions *session.Store
	api      *gateway.Client
	dir      *appointment.Directory
	detail   *appointment.Detail
}

func main() {
	// A missing .env is fine; system environment still applies.
	_ = godotenv.Load()
	log.SetFlags(0)

	cfg := config.Load()
	sessions := session.NewStore(cfg.TokenPath)
	if err := sessions.Restore(); err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Fatalf("portal: %v", err)
	}

	a := &app{cfg: cfg, sessions: sessions}
	a.api = gateway.New(cfg.APIBaseURL, cfg.HTTPTimeout, sessions.AccessToken, func() {
		sessions.Clear()
		fmt.Fprintln(os.Stderr, "Your session has expired. Run 'portal login <username>' to sign in again.")
	})
	a.dir = appointment.NewDirectory(a.api)
	a.detail = appointment.NewDetail(a.api)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "login":
		err = a.login(ctx, os.Args[2:])
	case "logout":
		a.sessions.Clear()
		fmt.Println("Signed out.")
	case "whoami":
		err = a.whoami()
	case "seed":
		err = a.seed(ctx, os.Args[2:])
	case "list":
		err = a.list(ctx, os.Args[2:])
	case "show":
		err = a.show(ctx, os.Args[2:])
	case "checkin":
		err = a.verify(ctx, visit.ActionCheckIn, os.Args[2:])
	case "checkout":
		err = a.verify(ctx, visit.ActionCheckOut, os.Args[2:])
	case "note":
		err = a.note(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		if msg := visit.Describe(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
			log.Printf("portal: %v", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (a *app) requireSession() error {
	if !a.sessions.Authenticated() {
		return errors.New("portal: not signed in; run 'portal login <username>'")
	}
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("portal: login requires a username")
	}
	username := strings.TrimSpace(args[0])

	resp, err := a.api.Login(ctx, username)
	if err != nil {
		return err
	}
	if resp.Code != gateway.CodeOK || resp.Data == nil {
		return &visit.ApplicationError{Message: resp.Message, Code: resp.Code}
	}
	if err := a.sessions.Establish(*resp.Data); err != nil {
		return err
	}
	user := a.sessions.User()
	fmt.Printf("Signed in as %s (%s).\n", user.Username, user.Email)
	return nil
}

func (a *app) whoami() error {
	if err := a.requireSession(); err != nil {
		return err
	}
	user := a.sessions.User()
	fmt.Printf("User ID:   %s\n", user.UserID)
	fmt.Printf("Username:  %s\n", user.Username)
	fmt.Printf("Email:     %s\n", user.Email)
	fmt.Printf("Verified:  %t\n", user.IsVerified)
	fmt.Printf("Roles:     %s\n", strings.Join(user.Roles, ", "))
	fmt.Printf("Expires:   %s\n", a.sessions.Tokens().ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (a *app) seed(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	flags := flag.NewFlagSet("seed", flag.ExitOnError)
	count := flags.Int("count", 3, "number of demo appointments to create")
	_ = flags.Parse(args)

	resp, err := a.api.SeedAppointments(ctx, gateway.SeedRequest{Count: *count})
	if err != nil {
		return err
	}
	if resp.Code != gateway.CodeOK {
		return &visit.ApplicationError{Message: resp.Message, Code: resp.Code}
	}
	fmt.Printf("Seeded demo appointments: %s\n", resp.Message)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	statusFlag := flags.String("status", string(model.StatusScheduled), "status filter")
	_ = flags.Parse(args)

	status := model.AppointmentStatus(strings.ToUpper(*statusFlag))
	if !status.Valid() {
		return fmt.Errorf("portal: unknown status %q", *statusFlag)
	}

	appointments, err := a.dir.List(ctx, status)
	if err != nil {
		return err
	}
	if len(appointments) == 0 {
		fmt.Printf("No %s appointments\n", strings.ToLower(strings.ReplaceAll(string(status), "_", " ")))
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLIENT\tADDRESS\tSTART\tEND\tSTATUS")
	for _, appt := range appointments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			appt.AppointmentID,
			appt.ClientDetail.Name,
			appt.ClientDetail.Address,
			appt.StartTime.Local().Format("Mon Jan 2 15:04"),
			appt.EndTime.Local().Format("15:04"),
			appt.Status,
		)
	}
	return tw.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(args) < 1 {
		return errors.New("portal: show requires an appointment id")
	}

	appt, logs, err := a.detail.Load(ctx, args[0])
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			fmt.Println("Appointment not found")
			return nil
		}
		return err
	}

	fmt.Printf("Appointment %s (%s)\n", appt.AppointmentID, appt.Status)
	fmt.Printf("  Client:   %s, %s\n", appt.ClientDetail.Name, appt.ClientDetail.Phone)
	fmt.Printf("  Address:  %s\n", appt.ClientDetail.Address)
	if appt.ClientDetail.HasLocation() {
		fmt.Printf("  Location: %.6f, %.6f\n", appt.ClientDetail.Latitude, appt.ClientDetail.Longitude)
	}
	fmt.Printf("  Window:   %s - %s\n",
		appt.StartTime.Local().Format("Mon Jan 2 15:04"),
		appt.EndTime.Local().Format("15:04"))
	if appt.Notes != "" {
		fmt.Printf("  Notes:    %s\n", appt.Notes)
	}
	switch {
	case appointment.CanCheckIn(appt):
		fmt.Println("  Next:     checkin available")
	case appointment.CanCheckOut(appt):
		fmt.Println("  Next:     checkout available")
	}

	if len(logs) == 0 {
		fmt.Println("No activity logs available")
		return nil
	}
	fmt.Println("Activity log:")
	for _, entry := range logs {
		fmt.Printf("  %-9s %s (%.6f, %.6f)", entry.LogType,
			entry.Timestamp.Local().Format("Jan 2 15:04:05"), entry.Latitude, entry.Longitude)
		if entry.Notes != "" {
			fmt.Printf(" - %s", entry.Notes)
		}
		fmt.Println()
	}
	return nil
}

func (a *app) verify(ctx context.Context, action visit.Action, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("portal: %s requires an appointment id", action)
	}
	appointmentID := args[0]

	flags := flag.NewFlagSet(string(action), flag.ExitOnError)
	code := flags.String("code", "", "verification code (check-in only)")
	note := flags.String("note", "", "optional visit note")
	lat := flags.String("lat", "", "device latitude")
	lng := flags.String("lng", "", "device longitude")
	_ = flags.Parse(args[1:])

	locator, err := buildLocator(*lat, *lng)
	if err != nil {
		return err
	}

	wf := visit.NewWorkflow(a.api, a.detail, locator, a.cfg.GeoTimeout)
	if err := wf.Load(ctx, appointmentID); err != nil {
		return err
	}
	if err := wf.Begin(ctx, action); err != nil {
		return err
	}
	if warn := wf.LocationWarning(); warn != nil {
		fmt.Fprintln(os.Stderr, "Warning: "+visit.Describe(warn))
	}

	if action == visit.ActionCheckIn {
		if *code == "" {
			entered, err := promptLine("Verification code: ")
			if err != nil {
				return err
			}
			*code = entered
		}
		wf.SetCode(strings.TrimSpace(*code))
	}
	wf.SetNote(*note)

	if err := wf.Submit(ctx); err != nil {
		return err
	}

	appt := wf.Appointment()
	fmt.Printf("%s recorded. Appointment is now %s.\n", actionLabel(action), appt.Status)
	if logs := wf.Logs(); len(logs) > 0 {
		last := logs[len(logs)-1]
		fmt.Printf("Logged %s at %s.\n", last.LogType, last.Timestamp.Local().Format("15:04:05"))
	}
	return nil
}

func (a *app) note(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(args) < 1 {
		return errors.New("portal: note requires an appointment id")
	}
	appointmentID := args[0]

	flags := flag.NewFlagSet("note", flag.ExitOnError)
	activityType := flags.String("type", "", "activity type (GENERAL, MEDICATION, MEAL, EXERCISE, OTHER)")
	text := flags.String("text", "", "activity note text")
	_ = flags.Parse(args[1:])

	form := visit.NewReportForm(a.api, a.detail, appointmentID)
	form.ActivityType = visit.ActivityType(strings.ToUpper(strings.TrimSpace(*activityType)))
	form.Notes = strings.TrimSpace(*text)

	logs, err := form.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Note recorded (%d log entries).\n", len(logs))
	return nil
}

func actionLabel(action visit.Action) string {
	if action == visit.ActionCheckIn {
		return "Check-in"
	}
	return "Check-out"
}

func buildLocator(lat, lng string) (geo.Locator, error) {
	if lat == "" && lng == "" {
		return geo.Unavailable{}, nil
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("portal: invalid -lat value %q", lat)
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, fmt.Errorf("portal: invalid -lng value %q", lng)
	}
	return geo.Static{Latitude: latitude, Longitude: longitude}, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("portal: read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
