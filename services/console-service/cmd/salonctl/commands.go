package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/config"
	"github.com/md-rashed-zaman/salonconsole/libs/runtime"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/credentials"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/roster"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/settings"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/storeclient"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/visibility"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type options struct {
	Format         string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SettingsPrefix string
	StoreAddr      string
	StoreTimeout   time.Duration
	RosterPath     string
	Timezone       string
	BcryptCost     int
}

// app carries the backends commands run against. Tests swap the openers.
type app struct {
	opts         options
	logger       *slog.Logger
	now          func() time.Time
	openSettings func(o *options) (settings.Store, func(), error)
	openStore    func(o *options, logger *slog.Logger) (storeclient.Client, func(), error)
}

func newApp() *app {
	return &app{
		logger:       runtime.NewLogger("salonctl"),
		now:          time.Now,
		openSettings: openRedisSettings,
		openStore:    openGRPCStore,
	}
}

func openRedisSettings(o *options) (settings.Store, func(), error) {
	if strings.TrimSpace(o.RedisAddr) == "" {
		return nil, nil, fmt.Errorf("--redis-addr (or REDIS_ADDR) is required to change stored passwords")
	}
	rdb := redis.NewClient(&redis.Options{Addr: o.RedisAddr, Password: o.RedisPassword, DB: o.RedisDB})
	return settings.NewRedisStore(rdb, o.SettingsPrefix), func() { _ = rdb.Close() }, nil
}

func openGRPCStore(o *options, logger *slog.Logger) (storeclient.Client, func(), error) {
	c, err := storeclient.Dial(o.StoreAddr, o.StoreTimeout, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "salonctl",
		Short:         "Operate the salon staff console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if a.opts.Format != "text" && a.opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", a.opts.Format)
			}
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.opts.Format, "format", "text", "output format (text|json)")
	f.StringVar(&a.opts.RedisAddr, "redis-addr", config.String("REDIS_ADDR", ""), "redis holding console settings")
	f.StringVar(&a.opts.RedisPassword, "redis-password", config.String("REDIS_PASSWORD", ""), "redis password")
	f.IntVar(&a.opts.RedisDB, "redis-db", config.Int("REDIS_DB", 0), "redis database")
	f.StringVar(&a.opts.SettingsPrefix, "settings-prefix", config.String("SETTINGS_PREFIX", ""), "settings key prefix")
	f.StringVar(&a.opts.StoreAddr, "store-addr", config.String("STORE_GRPC_ADDR", "localhost:9091"), "appointment store gRPC address")
	f.DurationVar(&a.opts.StoreTimeout, "store-timeout", config.Duration("STORE_CALL_TIMEOUT", storeclient.DefaultTimeout), "deadline per store call")
	f.StringVar(&a.opts.RosterPath, "roster", config.String("STAFF_ROSTER_PATH", ""), "staff roster YAML (built-in roster when empty)")
	f.StringVar(&a.opts.Timezone, "timezone", config.String("CONSOLE_TIMEZONE", "UTC"), "IANA zone used for calendar days")
	f.IntVar(&a.opts.BcryptCost, "bcrypt-cost", config.Int("BCRYPT_COST", bcrypt.DefaultCost), "bcrypt cost for new passwords")

	cmd.AddCommand(newMasterPasswordCommand(a))
	cmd.AddCommand(newPasswordCommand(a))
	cmd.AddCommand(newAppointmentsCommand(a))
	return cmd
}

func (a *app) resolver() (*credentials.Resolver, func(), error) {
	store, closeFn, err := a.openSettings(&a.opts)
	if err != nil {
		return nil, nil, err
	}
	return credentials.NewResolver(store, a.logger, a.opts.BcryptCost), closeFn, nil
}

func (a *app) roster() (*roster.Roster, error) {
	if a.opts.RosterPath == "" {
		return roster.Default(), nil
	}
	return roster.Load(a.opts.RosterPath)
}

func newMasterPasswordCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master-password",
		Short: "Manage the console master password",
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the master password to its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, closeFn, err := a.resolver()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := creds.ResetMasterPassword(cmd.Context(), yes); err != nil {
				if !yes {
					return fmt.Errorf("%w: pass --yes to confirm", err)
				}
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]string{"status": "reset"}, "master password restored to default\n")
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	cmd.AddCommand(reset)
	return cmd
}

func newPasswordCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage per-actor passwords",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <actor-id> <password>",
		Short: "Store a password for a roster actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			staff, err := a.roster()
			if err != nil {
				return err
			}
			actor, ok := staff.Lookup(args[0])
			if !ok {
				return fmt.Errorf("actor %q is not in the roster", args[0])
			}
			creds, closeFn, err := a.resolver()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := creds.SetPasswordDirect(cmd.Context(), actor.ActorID(), args[1]); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]string{"status": "updated", "actor_id": actor.ActorID()},
				fmt.Sprintf("password updated for %s (%s)\n", actor.DisplayName(), actor.ActorID()))
		},
	})
	return cmd
}

type listedAppointment struct {
	ID               string              `json:"id"`
	Date             time.Time           `json:"date"`
	ClientName       string              `json:"client_name"`
	ProfessionalID   string              `json:"professional_id"`
	ProfessionalName string              `json:"professional_name"`
	ServiceName      string              `json:"service_name"`
	PriceCents       int64               `json:"price_cents"`
	Status           salon.Status        `json:"status"`
	PaymentStatus    salon.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	PastDue          bool                `json:"past_due"`
}

type listing struct {
	Actor        string              `json:"actor_id"`
	Date         string              `json:"date"`
	Appointments []listedAppointment `json:"appointments"`
	Summary      visibility.Summary  `json:"summary"`
}

func newAppointmentsCommand(a *app) *cobra.Command {
	var actorID, date, professional string
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List one day of appointments as an actor would see them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := time.LoadLocation(a.opts.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", a.opts.Timezone, err)
			}
			staff, err := a.roster()
			if err != nil {
				return err
			}
			actor, ok := staff.Lookup(actorID)
			if !ok {
				return fmt.Errorf("actor %q is not in the roster", actorID)
			}
			day := a.now().In(loc)
			if date != "" {
				day, err = time.ParseInLocation(time.DateOnly, date, loc)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}
			if professional != visibility.AllProfessionals && !salon.IsAdministrative(actor) {
				return fmt.Errorf("--professional is only available to administrators")
			}

			store, closeFn, err := a.openStore(&a.opts, a.logger)
			if err != nil {
				return err
			}
			defer closeFn()
			appts, err := store.FetchAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch appointments: %w", err)
			}
			return a.printListing(cmd.OutOrStdout(), staff, actor, day, loc, visibility.Visible(appts, actor, day, professional, loc))
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id to view as")
	cmd.Flags().StringVar(&date, "date", "", "calendar day YYYY-MM-DD (today when empty)")
	cmd.Flags().StringVar(&professional, "professional", visibility.AllProfessionals, "professional id filter for administrators")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func (a *app) printListing(w io.Writer, staff *roster.Roster, actor salon.Actor, day time.Time, loc *time.Location, visible []salon.Appointment) error {
	pastDue := map[string]bool{}
	for _, p := range visibility.PastDue(visible, a.now()) {
		pastDue[p.ID] = true
	}
	out := listing{
		Actor:        actor.ActorID(),
		Date:         day.Format(time.DateOnly),
		Appointments: make([]listedAppointment, 0, len(visible)),
		Summary:      visibility.Summarize(visible),
	}
	for _, v := range visible {
		name := v.Professional.Name
		if name == "" {
			name = staff.ProfessionalName(v.Professional.ID)
		}
		out.Appointments = append(out.Appointments, listedAppointment{
			ID:               v.ID,
			Date:             v.Date.In(loc),
			ClientName:       v.Client.Name,
			ProfessionalID:   v.Professional.ID,
			ProfessionalName: name,
			ServiceName:      v.Service.Name,
			PriceCents:       v.Service.PriceCents,
			Status:           v.Status,
			PaymentStatus:    v.PaymentStatus,
			PaymentMethod:    v.PaymentMethod,
			PastDue:          pastDue[v.ID],
		})
	}

	if a.opts.Format == "json" {
		return json.NewEncoder(w).Encode(out)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tID\tCLIENT\tPROFESSIONAL\tSERVICE\tSTATUS\tPAYMENT")
	for _, r := range out.Appointments {
		status := string(r.Status)
		if r.PastDue {
			status += " (past due)"
		}
		payment := string(r.PaymentStatus)
		if r.PaymentMethod != "" {
			payment += " " + r.PaymentMethod
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date.Format("15:04"), r.ID, r.ClientName, r.ProfessionalName, r.ServiceName, status, payment)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d appointment(s) on %s, %d pending payment(s)\n", out.Summary.Total, out.Date, out.Summary.PendingPayments)
	return err
}

func (a *app) print(w io.Writer, v any, text string) error {
	if a.opts.Format == "json" {
		return json.NewEncoder(w).Encode(v)
	}
	_, err := io.WriteString(w, text)
	return err
}
