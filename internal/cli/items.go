package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/ui"
)

// Output formats for ls and watch.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return usagef("unknown format %q (want table, json or yaml)", format)
}

func (a *app) lsCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			sess, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.waitReady(ctx); err != nil {
				return err
			}
			return a.render(format, sess.syncer.Snapshot())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}

func (a *app) addCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add [title...]",
		Short: "Add a new item (title can be multiple words)",
		Example: `  itemsync add "Buy milk" --description "2 liters"
  itemsync add`,
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			description = strings.TrimSpace(description)
			if title == "" || description == "" {
				if !isInteractive(a.in) {
					return usagef("add: a title and --description are required")
				}
				if err := a.itemForm("Add item", &title, &description).Run(); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			sess, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer sess.Close()

			res := sess.syncer.AddItem(strings.TrimSpace(title), strings.TrimSpace(description))
			if err := res.Wait(ctx); err != nil {
				return err
			}
			ui.OK("added " + res.ID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "item description")
	return cmd
}

func (a *app) editCommand() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the title and description of an item",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			sess, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.waitReady(ctx); err != nil {
				return err
			}

			item, ok := sess.syncer.Lookup(id)
			if !ok {
				fmt.Fprintln(a.errOut, ui.C(ui.Current().Muted, "Hint: run `itemsync ls` to see item ids"))
				return errs.NotFound(id)
			}

			flags := cmd.Flags()
			switch {
			case flags.Changed("title") || flags.Changed("description"):
				if flags.Changed("title") {
					item.Title = title
				}
				if flags.Changed("description") {
					item.Description = description
				}
			case isInteractive(a.in):
				if err := a.itemForm("Edit item", &item.Title, &item.Description).Run(); err != nil {
					return err
				}
			default:
				return usagef("edit: pass --title or --description")
			}

			item.Title = strings.TrimSpace(item.Title)
			item.Description = strings.TrimSpace(item.Description)
			if item.Title == "" {
				return usagef("edit: title cannot be empty")
			}

			if err := sess.syncer.UpdateItem(item).Wait(ctx); err != nil {
				return err
			}
			ui.OK("updated " + id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			sess, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.syncer.DeleteItem(args[0]).Wait(ctx); err != nil {
				return err
			}
			ui.OK("removed " + args[0])
			return nil
		},
	}
}

// itemForm asks for a title and a description, both required.
func (a *app) itemForm(heading string, title, description *string) *huh.Form {
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s cannot be empty", field)
			}
			return nil
		}
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(heading).
				Prompt("Title: ").
				Value(title).
				Validate(required("title")),
			huh.NewText().
				Title("Description").
				Value(description).
				Validate(required("description")),
		),
	).WithInput(a.in).WithOutput(a.out)
}

// render prints items in the requested format.
func (a *app) render(format string, items []model.Item) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("yaml encode: %w", err)
		}
		return enc.Close()
	default:
		lines := []string{ui.Header(a.cfg.Collection, len(items)), ""}
		lines = append(lines, ui.ItemLines(items)...)
		lines = append(lines, "", ui.C(ui.Current().Muted, "Tip: add with `itemsync add \"Buy milk\" -d \"2 liters\"`"))
		ui.Panel(lines)
		return nil
	}
}
