package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/app"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Inspect roles and authorization decisions",
}

var accessMatrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the permission matrix of a role",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("role")
		role := access.CanonicalRole(raw)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", raw)
		}
		return renderMatrix(cmd.OutOrStdout(), access.DefaultRegistry(), role)
	},
}

var accessCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a capability, project or task check for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		q := checkQuery{}
		q.module, _ = cmd.Flags().GetString("module")
		q.action, _ = cmd.Flags().GetString("action")
		q.project, _ = cmd.Flags().GetString("project")
		q.task, _ = cmd.Flags().GetString("task")
		q.edit, _ = cmd.Flags().GetBool("edit")
		if q.module == "" && q.project == "" && q.task == "" {
			return fmt.Errorf("one of --module, --project or --task is required")
		}
		return withServices(cmd.Context(), func(svc *app.Services) error {
			p, err := svc.Loader.Load(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printDecisions(cmd.OutOrStdout(), svc.Resolver, p, q)
		})
	},
}

var accessFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Retire every cached principal snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(svc *app.Services) error {
			if err := svc.Principals.InvalidateAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "principal cache flushed")
			return nil
		})
	},
}

type checkQuery struct {
	module  string
	action  string
	project string
	task    string
	edit    bool
}

func verdict(ok bool) string {
	if ok {
		return "allow"
	}
	return "deny"
}

func printDecisions(w io.Writer, r *access.Resolver, p *access.Principal, q checkQuery) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "user\t%s\nrole\t%s\n", p.ID, access.DisplayName(p.Role))
	if q.module != "" {
		if q.action == "" {
			return fmt.Errorf("--action is required with --module")
		}
		ok := r.HasModuleCapability(p, access.Module(q.module), access.Action(q.action))
		fmt.Fprintf(tw, "%s.%s\t%s\n", q.module, q.action, verdict(ok))
	}
	if q.project != "" {
		fmt.Fprintf(tw, "view project %s\t%s\n", q.project, verdict(r.CanViewProject(p, q.project)))
		if q.edit {
			fmt.Fprintf(tw, "edit project %s\t%s\n", q.project, verdict(r.CanEditProject(p, q.project)))
		}
	}
	if q.task != "" {
		fmt.Fprintf(tw, "view task %s\t%s\n", q.task, verdict(r.CanViewTask(p, q.task)))
		if q.edit {
			fmt.Fprintf(tw, "edit task %s\t%s\n", q.task, verdict(r.CanEditTask(p, q.task)))
		}
	}
	return tw.Flush()
}

func renderMatrix(w io.Writer, reg *access.Registry, role access.Role) error {
	matrix, ok := reg.Permissions(role)
	if !ok {
		return fmt.Errorf("role %s has no matrix", role)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", access.DisplayName(role))
	for _, module := range access.Modules() {
		var granted []string
		for _, action := range access.Actions() {
			if matrix.Allows(module, action) {
				granted = append(granted, string(action))
			}
		}
		if len(granted) == 0 {
			granted = []string{"-"}
		}
		fmt.Fprintf(tw, "%s\t%s\n", module, strings.Join(granted, ", "))
	}
	return tw.Flush()
}

func init() {
	accessMatrixCmd.Flags().StringP("role", "r", "", "Role name (canonical or legacy)")
	_ = accessMatrixCmd.MarkFlagRequired("role")
	accessCmd.AddCommand(accessMatrixCmd)

	accessCheckCmd.Flags().StringP("user", "u", "", "User ID")
	accessCheckCmd.Flags().StringP("module", "m", "", "Module to check")
	accessCheckCmd.Flags().StringP("action", "a", "", "Action within the module")
	accessCheckCmd.Flags().String("project", "", "Project ID to check")
	accessCheckCmd.Flags().String("task", "", "Task ID to check")
	accessCheckCmd.Flags().Bool("edit", false, "Also evaluate edit access for --project/--task")
	_ = accessCheckCmd.MarkFlagRequired("user")
	accessCmd.AddCommand(accessCheckCmd)

	accessCmd.AddCommand(accessFlushCmd)

	rootCmd.AddCommand(accessCmd)
}
