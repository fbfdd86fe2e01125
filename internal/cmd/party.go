package cmd

import (
	"fieldparty/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) partyCmd() *cobra.Command {
	partyCmd := &cobra.Command{
		Use:   "party",
		Short: "Create, join and inspect parties",
	}
	partyCmd.AddCommand(
		a.partyCreateCmd(),
		a.partyJoinCmd(),
		a.partyLeaveCmd(),
		a.partyShareCmd(),
		a.partyShowCmd(),
		a.partyListCmd(),
		a.partyDeleteCmd(),
	)
	return partyCmd
}

func (a *app) partyCreateCmd() *cobra.Command {
	var leader string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new party led by --leader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			party, err := svc.Parties.CreateParty(cmd.Context(), domain.UserID(leader))
			if err != nil {
				return err
			}
			return printJSON(cmd, party)
		},
	}
	cmd.Flags().StringVarP(&leader, "leader", "l", "", "user id of the party leader")
	_ = cmd.MarkFlagRequired("leader")
	return cmd
}

func (a *app) partyJoinCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "join <party-id>",
		Short: "Add --user to a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			party, err := svc.Parties.JoinParty(cmd.Context(), args[0], domain.UserID(user))
			if err != nil {
				return err
			}
			return printJSON(cmd, party)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id joining the party")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) partyLeaveCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "leave <party-id>",
		Short: "Remove --user from a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			party, err := svc.Parties.LeaveParty(cmd.Context(), args[0], domain.UserID(user))
			if err != nil {
				return err
			}
			return printJSON(cmd, party)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id leaving the party")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) partyShareCmd() *cobra.Command {
	var ref domain.ObservationRef
	cmd := &cobra.Command{
		Use:   "share <party-id>",
		Short: "Append an observation reference to a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			party, err := svc.Parties.ShareObservation(cmd.Context(), args[0], ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, party)
		},
	}
	cmd.Flags().StringVar(&ref.ID, "observation", "", "observation id")
	cmd.Flags().StringVar(&ref.Type, "type", "", "observation type")
	_ = cmd.MarkFlagRequired("observation")
	return cmd
}

func (a *app) partyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <party-id>",
		Short: "Print a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			party, err := svc.Parties.GetParty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, party)
		},
	}
}

func (a *app) partyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all parties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			parties, err := svc.Parties.ListParties(cmd.Context())
			if err != nil {
				return err
			}
			return printParties(cmd, parties)
		},
	}
}

func (a *app) partyDeleteCmd() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "delete <party-id>",
		Short: "Delete a party; --caller must be its leader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Parties.DeleteParty(cmd.Context(), args[0], domain.UserID(caller)); err != nil {
				return err
			}
			cmd.Printf("Deleted party %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "user id requesting the delete")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}
