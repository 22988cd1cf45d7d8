package cmd

import (
	"fmt"
	"strings"

	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
	"github.com/spf13/cobra"
)

func newWorkCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Manage work items",
	}

	cmd.AddCommand(
		newWorkCreateCmd(app),
		newWorkListCmd(app),
		newWorkShowCmd(app),
		newWorkCancelCmd(app),
		newWorkChildrenCmd(app),
	)

	return cmd
}

func newWorkCreateCmd(app *app) *cobra.Command {
	var (
		workType    string
		description string
		tags        []string
		priority    int
		parentID    string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.work.Create(cmd.Context(), domain.WorkInput{
				Type:        domain.WorkType(workType),
				Title:       args[0],
				Description: description,
				Tags:        tags,
				Priority:    priority,
				ParentID:    domain.WorkID(parentID),
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created work item %s [%s]\n", item.ID, item.Status)
			return err
		},
	}

	cmd.Flags().StringVar(&workType, "type", "", "work type (task, pipeline, batch, review)")
	cmd.Flags().StringVar(&description, "description", "", "work description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority (higher runs first)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent work item id")

	return cmd
}

func newWorkListCmd(app *app) *cobra.Command {
	var (
		statuses []string
		workType string
		tag      string
		offset   int
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := ports.WorkFilter{
				Type: domain.WorkType(workType),
				Tag:  tag,
			}
			for _, status := range statuses {
				filter.Statuses = append(filter.Statuses, domain.WorkStatus(status))
			}

			page, err := app.work.List(cmd.Context(), filter, ports.Page{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, page)
			}

			for _, item := range page.Items {
				tags := ""
				if len(item.Tags) > 0 {
					tags = "\t" + strings.Join(item.Tags, ",")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s%s\n", item.ID, item.Type, item.Status, item.Title, tags)
			}
			if page.HasMore {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d, more available)\n", len(page.Items), page.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (repeatable)")
	cmd.Flags().StringVar(&workType, "type", "", "filter by work type")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "pagination limit (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newWorkShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its event trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.work.Get(cmd.Context(), domain.WorkID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, item)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "id:\t%s\n", item.ID)
			_, _ = fmt.Fprintf(out, "title:\t%s\n", item.Title)
			_, _ = fmt.Fprintf(out, "type:\t%s\n", item.Type)
			_, _ = fmt.Fprintf(out, "status:\t%s\n", item.Status)
			if item.Error != "" {
				_, _ = fmt.Fprintf(out, "error:\t%s\n", item.Error)
			}
			if item.ParentID != "" {
				_, _ = fmt.Fprintf(out, "parent:\t%s\n", item.ParentID)
			}
			if len(item.ChildIDs) > 0 {
				_, _ = fmt.Fprintf(out, "children:\t%d\n", len(item.ChildIDs))
			}
			_, _ = fmt.Fprintf(out, "iterations:\t%d\n", item.Iterations)
			_, _ = fmt.Fprintln(out, "events:")
			for _, event := range item.Events {
				message := event.Message
				if message != "" {
					message = "\t" + message
				}
				_, _ = fmt.Fprintf(out, "  %s\t%s%s\n", event.Timestamp.Format("2006-01-02 15:04:05"), event.Type, message)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newWorkCancelCmd(app *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.work.Cancel(cmd.Context(), domain.WorkID(args[0]), reason)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cancelled work item %s\n", item.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")

	return cmd
}

func newWorkChildrenCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "children <id>",
		Short: "List the children of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			children, err := app.work.GetChildren(cmd.Context(), domain.WorkID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, children)
			}

			for _, child := range children {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", child.ID, child.Status, child.Title)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}
