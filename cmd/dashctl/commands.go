package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	appcrm "github.com/saasfilter/backend/internal/application/crm"
	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/spf13/cobra"
)

// newRootCommand builds a fresh command tree over a. The shell rebuilds it for every line so
// flag values never leak between commands.
func newRootCommand(a *app) *cobra.Command {
	var as string

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Drive the SaaSFilter dashboard from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if as == "" || a.loggedIn() {
				return nil
			}
			_, err := a.login(as)
			return err
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.out)
	root.PersistentFlags().StringVar(&as, "as", "", "log in as this email before running the command")

	root.AddCommand(
		newLoginCommand(a),
		newWhoamiCommand(a),
		newSwitchCommand(a),
		newLeadsCommand(a),
		newEditCommand(a),
		newDraftCommand(a),
		newSaveCommand(a),
		newCancelCommand(a),
		newCallsCommand(a),
		newCanCommand(a),
		newLogoutCommand(a),
		newShellCommand(a),
	)
	return root
}

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Log in (admin@test.com or agent@test.com)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.login(args[0])
			if err != nil {
				return err
			}
			printSession(a.out, res.Session)
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and active tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			printSession(a.out, appidentity.ToSessionInfo(a.store.CurrentState()))
			return nil
		},
	}
}

func newSwitchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <tenant>",
		Short: "Make another granted tenant active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			res := a.auth.SwitchTenant(a.ctx, a.store, args[0])
			if !res.Switched {
				fmt.Fprintf(a.out, "Tenant %s is not available; still on %s\n", args[0], res.Session.ActiveTenant.Label)
				return nil
			}
			fmt.Fprintf(a.out, "Switched to %s\n", res.Session.ActiveTenant.Label)
			return nil
		},
	}
}

func newLeadsCommand(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List the active tenant's leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if cmd.Flags().Changed("status") {
				if err := a.leads.SetFilter(status); err != nil {
					return err
				}
			}
			if err := a.leads.Refresh(a.ctx); err != nil {
				return err
			}
			printLeads(a.out, a.leads)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter: All, New, Negotiation or Closed (sticky)")
	return cmd
}

func newEditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <lead-id>",
		Short: "Start editing a lead's status (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lead id %q", args[0])
			}
			if err := a.leads.StartEdit(id); err != nil {
				return err
			}
			edit, _ := a.leads.Editing()
			fmt.Fprintf(a.out, "Editing lead %d (%s)\n", edit.LeadID, edit.Draft)
			return nil
		},
	}
}

func newDraftCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <status>",
		Short: "Set the draft status of the open edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.leads.SetDraft(args[0]); err != nil {
				return err
			}
			edit, _ := a.leads.Editing()
			fmt.Fprintf(a.out, "Lead %d: %s -> %s\n", edit.LeadID, edit.Original, edit.Draft)
			return nil
		},
	}
}

func newSaveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save the open edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			lead, err := a.leads.Save(a.ctx)
			if err != nil {
				var saveErr *appcrm.SaveError
				if errors.As(err, &saveErr) {
					return fmt.Errorf("%s: %w", saveErr.Error(), saveErr.Err)
				}
				return err
			}
			fmt.Fprintf(a.out, "Lead %d is now %s\n", lead.ID, lead.Status)
			return nil
		},
	}
}

func newCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the open edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			a.leads.Cancel()
			fmt.Fprintln(a.out, "Edit cancelled")
			return nil
		},
	}
}

func newCallsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calls",
		Short: "List the active tenant's call log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.calls.Refresh(a.ctx); err != nil {
				return err
			}
			printCalls(a.out, a.calls)
			return nil
		},
	}
}

func newCanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can <role>",
		Short: "Check the role gate for admin or agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			role, err := identity.ParseRole(args[0])
			if err != nil {
				return err
			}
			if a.auth.CanAccess(a.store, role) {
				fmt.Fprintf(a.out, "allowed: %s\n", role)
			} else {
				fmt.Fprintf(a.out, "denied: %s\n", role)
			}
			return nil
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logout()
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newShellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively until exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(a, cmd.InOrStdin())
		},
	}
}

// runShell reads one command per line. Command errors are printed and the loop continues.
func runShell(a *app, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, prompt(a))
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "shell":
			fmt.Fprintln(a.out, "error: already in the shell")
			continue
		}

		root := newRootCommand(a)
		root.SetArgs(fields)
		if err := root.Execute(); err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
	}
}

func prompt(a *app) string {
	if !a.loggedIn() {
		return "dashctl> "
	}
	st := a.store.CurrentState()
	return fmt.Sprintf("%s@%s> ", st.Identity.Role(), st.ActiveTenant.Label())
}

func printSession(w io.Writer, info appidentity.SessionInfo) {
	if info.User == nil {
		fmt.Fprintln(w, "Not logged in")
		return
	}
	fmt.Fprintf(w, "%s <%s> %s\n", info.User.Name, info.User.Email, info.User.RoleName)
	labels := make([]string, 0, len(info.User.Tenants))
	for _, t := range info.User.Tenants {
		labels = append(labels, t.Label)
	}
	fmt.Fprintf(w, "Tenant: %s (available: %s)\n", info.ActiveTenant.Label, strings.Join(labels, ", "))
}

func printLeads(w io.Writer, v *appcrm.LeadsView) {
	fmt.Fprintf(w, "Leads for %s [filter: %s]\n", v.Tenant().Label(), v.Filter())
	if msg := v.EmptyMessage(); msg != "" {
		fmt.Fprintln(w, msg)
		return
	}

	edit, editing := v.Editing()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tVALUE")
	for _, l := range v.Rows() {
		status := l.Status.String()
		if editing && edit.LeadID == l.ID {
			status = fmt.Sprintf("%s -> %s (editing)", edit.Original, edit.Draft)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", l.ID, l.Name, status, l.ValueLabel())
	}
	_ = tw.Flush()
}

func printCalls(w io.Writer, v *appcrm.CallsView) {
	fmt.Fprintf(w, "Calls for %s\n", v.Tenant().Label())
	if msg := v.EmptyMessage(); msg != "" {
		fmt.Fprintln(w, msg)
		return
	}
	for _, c := range v.Rows() {
		fmt.Fprintf(w, "%s  %s\n", c.LeadRef, c.Summary())
	}
}
