package cmd

import (
	"context"

	"fieldparty/internal/core"
	"fieldparty/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) routeCmd() *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Start, extend and complete routes",
	}
	routeCmd.AddCommand(
		a.routeStartCmd(),
		a.routeWaypointCmd(),
		a.routeJoinCmd(),
		a.routeLeaveCmd(),
		a.routeCompleteCmd(),
		a.routeShowCmd(),
		a.routeListCmd(),
		a.routeDeleteCmd(),
	)
	return routeCmd
}

func addLocationFlags(cmd *cobra.Command, loc *domain.Location) {
	cmd.Flags().Float64Var(&loc.Latitude, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&loc.Longitude, "lon", 0, "longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

// assertAuthor gates author-only commands when --caller is given. Authors
// never change, so the check does not need to share the mutation's lock.
func assertAuthor(ctx context.Context, svc *core.Service, routeID, caller string) error {
	if caller == "" {
		return nil
	}
	return svc.Routes.AssertAuthorIsUser(ctx, routeID, domain.UserID(caller))
}

func (a *app) routeStartCmd() *cobra.Command {
	var (
		author string
		name   string
		start  domain.Location
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a route at --lat/--lon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			route, err := svc.Routes.StartRoute(cmd.Context(), domain.UserID(author), name, start)
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
	cmd.Flags().StringVarP(&author, "author", "a", "", "user id of the route author")
	cmd.Flags().StringVarP(&name, "name", "n", "", "route name")
	addLocationFlags(cmd, &start)
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) routeWaypointCmd() *cobra.Command {
	var (
		loc         domain.Location
		description string
		obsID       string
		obsType     string
	)
	cmd := &cobra.Command{
		Use:   "waypoint <route-id>",
		Short: "Append a waypoint to an open route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			var obs *domain.ObservationRef
			if cmd.Flags().Changed("observation") {
				obs = &domain.ObservationRef{ID: obsID, Type: obsType}
			}
			route, err := svc.Routes.AddWaypoint(cmd.Context(), args[0], loc, description, obs)
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
	addLocationFlags(cmd, &loc)
	cmd.Flags().StringVarP(&description, "description", "d", "", "waypoint description")
	cmd.Flags().StringVar(&obsID, "observation", "", "id of an observation made at the waypoint")
	cmd.Flags().StringVar(&obsType, "observation-type", "", "type of the observation")
	return cmd
}

func (a *app) routeJoinCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "join <route-id>",
		Short: "Mark --user as active on a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			route, err := svc.Routes.AddActiveUser(cmd.Context(), args[0], domain.UserID(user))
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id joining the route")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) routeLeaveCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "leave <route-id>",
		Short: "Remove --user from a route's active users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			route, err := svc.Routes.RemoveActiveUser(cmd.Context(), args[0], domain.UserID(user))
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id leaving the route")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) routeCompleteCmd() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "complete <route-id>",
		Short: "Freeze a route and clear its active users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := assertAuthor(cmd.Context(), svc, args[0], caller); err != nil {
				return err
			}
			route, err := svc.Routes.CompleteRoute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "require the caller to be the route author")
	return cmd
}

func (a *app) routeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <route-id>",
		Short: "Print a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			route, err := svc.Routes.GetRoute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, route)
		},
	}
}

func (a *app) routeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			routes, err := svc.Routes.ListRoutes(cmd.Context())
			if err != nil {
				return err
			}
			return printRoutes(cmd, routes)
		},
	}
}

func (a *app) routeDeleteCmd() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "delete <route-id>",
		Short: "Delete a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := assertAuthor(cmd.Context(), svc, args[0], caller); err != nil {
				return err
			}
			if err := svc.Routes.DeleteRoute(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted route %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "require the caller to be the route author")
	return cmd
}
