package cmd

import (
	"context"
	"fmt"
	"time"

	"fieldparty/pkg/domain"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type simulateOptions struct {
	users       int
	concurrency int
}

func (o *simulateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.users, "users", 16, "number of simulated users")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "maximum concurrent requests (0 means one per user)")
}

func (o simulateOptions) validate() error {
	if o.users < 1 {
		return domain.ValidationError{Field: "users", Message: "must be at least 1"}
	}
	if o.concurrency < 0 {
		return domain.ValidationError{Field: "concurrency", Message: "must not be negative"}
	}
	return nil
}

// group returns an errgroup whose context is cancelled on the first failure.
func (o simulateOptions) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	return g, gctx
}

func simulatedUser(i int) domain.UserID {
	return domain.UserID(fmt.Sprintf("user-%03d", i))
}

func (a *app) simulateCmd() *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive concurrent mutations at one session and report the outcome",
		Long: `Fire many concurrent requests at a single session through the configured
store and print the resulting state. Every request must be reflected in the
final document: the member or waypoint count equals the number of users and
the version equals the number of applied mutations.`,
	}
	simulateCmd.AddCommand(a.simulatePartyCmd(), a.simulateRouteCmd())
	return simulateCmd
}

func (a *app) simulatePartyCmd() *cobra.Command {
	var (
		opts   simulateOptions
		leader string
		share  bool
	)
	cmd := &cobra.Command{
		Use:   "party",
		Short: "Concurrently join users to a new party",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			party, err := svc.Parties.CreateParty(ctx, domain.UserID(leader))
			if err != nil {
				return err
			}

			start := time.Now()
			g, gctx := opts.group(ctx)
			for i := range opts.users {
				user := simulatedUser(i)
				g.Go(func() error {
					if _, err := svc.Parties.JoinParty(gctx, party.ID, user); err != nil {
						return fmt.Errorf("join %s: %w", user, err)
					}
					if !share {
						return nil
					}
					ref := domain.ObservationRef{ID: "obs-" + string(user), Type: "simulated"}
					if _, err := svc.Parties.ShareObservation(gctx, party.ID, ref); err != nil {
						return fmt.Errorf("share from %s: %w", user, err)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			elapsed := time.Since(start)

			final, err := svc.Parties.GetParty(ctx, party.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "party:     %s\n", final.ID)
			fmt.Fprintf(out, "members:   %d\n", final.Members.Len())
			fmt.Fprintf(out, "shared:    %d\n", len(final.SharedItems))
			fmt.Fprintf(out, "version:   %d\n", final.Version)
			a.printConflicts(cmd)
			fmt.Fprintf(out, "elapsed:   %s\n", elapsed.Round(time.Millisecond))
			return checkParty(final, opts.users, share)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&leader, "leader", "leader", "user id of the party leader")
	cmd.Flags().BoolVar(&share, "share", false, "each user also shares one observation")
	return cmd
}

func (a *app) simulateRouteCmd() *cobra.Command {
	var (
		opts      simulateOptions
		author    string
		waypoints int
	)
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Concurrently append waypoints to a new route, then complete it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			if waypoints < 1 {
				return domain.ValidationError{Field: "waypoints", Message: "must be at least 1"}
			}
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			route, err := svc.Routes.StartRoute(ctx, domain.UserID(author), "simulated route", domain.Location{})
			if err != nil {
				return err
			}

			start := time.Now()
			g, gctx := opts.group(ctx)
			for i := range opts.users {
				user := simulatedUser(i)
				g.Go(func() error {
					if _, err := svc.Routes.AddActiveUser(gctx, route.ID, user); err != nil {
						return fmt.Errorf("join %s: %w", user, err)
					}
					for n := range waypoints {
						loc := domain.Location{Latitude: float64(i%90) / 10, Longitude: float64(n%180) / 10}
						desc := fmt.Sprintf("%s #%d", user, n)
						if _, err := svc.Routes.AddWaypoint(gctx, route.ID, loc, desc, nil); err != nil {
							return fmt.Errorf("waypoint from %s: %w", user, err)
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			final, err := svc.Routes.CompleteRoute(ctx, route.ID)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "route:     %s\n", final.ID)
			fmt.Fprintf(out, "waypoints: %d\n", len(final.Waypoints))
			fmt.Fprintf(out, "active:    %d\n", final.ActiveUsers.Len())
			fmt.Fprintf(out, "completed: %t\n", final.Completed)
			fmt.Fprintf(out, "version:   %d\n", final.Version)
			a.printConflicts(cmd)
			fmt.Fprintf(out, "elapsed:   %s\n", elapsed.Round(time.Millisecond))
			return checkRoute(final, opts.users, waypoints)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&author, "author", "author", "user id of the route author")
	cmd.Flags().IntVar(&waypoints, "waypoints", 1, "waypoints appended by each user")
	return cmd
}

func (a *app) printConflicts(cmd *cobra.Command) {
	if n, ok := a.conflicts(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "conflicts: %.0f\n", n)
	}
}

// checkParty fails when the final party lost a join or a share.
func checkParty(p domain.Party, users int, share bool) error {
	members := domain.NewIDSet(p.LeaderID)
	for i := range users {
		members.Add(simulatedUser(i))
	}
	wantMembers := members.Len()
	wantShared := 0
	if share {
		wantShared = users
	}
	wantVersion := int64(wantMembers - 1 + wantShared)
	if p.Members.Len() != wantMembers || len(p.SharedItems) != wantShared || p.Version != wantVersion {
		return fmt.Errorf("lost updates: members %d/%d shared %d/%d version %d/%d (members %s)",
			p.Members.Len(), wantMembers, len(p.SharedItems), wantShared, p.Version, wantVersion, userIDs(p.Members.IDs()))
	}
	return nil
}

// checkRoute fails when the final route lost a waypoint or was not frozen.
func checkRoute(r domain.Route, users, perUser int) error {
	want := 1 + users*perUser
	if len(r.Waypoints) != want || !r.Completed || r.ActiveUsers.Len() != 0 {
		return fmt.Errorf("lost updates: waypoints %d/%d completed %t active %d", len(r.Waypoints), want, r.Completed, r.ActiveUsers.Len())
	}
	return nil
}
