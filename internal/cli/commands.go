package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/Tomlord1122/todo-widget/internal/api"
	"github.com/Tomlord1122/todo-widget/internal/client"
	"github.com/Tomlord1122/todo-widget/internal/ui"
)

var (
	errIDRequired   = errors.New("at least one todo id is required")
	errTextRequired = errors.New("todo text is required")
)

func (a *app) commands() []*Command {
	return []*Command{
		a.loginCmd(),
		a.listCmd(),
		a.addCmd(),
		a.editCmd(),
		a.doneCmd("done", true),
		a.doneCmd("undo", false),
		a.rmCmd(),
		a.clearDoneCmd(),
		a.reorderCmd(),
		a.widgetCmd(),
	}
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parseIDs(args []string) ([]uint, error) {
	if len(args) == 0 {
		return nil, errIDRequired
	}
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid todo id %q", arg)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (a *app) loginCmd() *Command {
	fs := newFlags("login")
	server := fs.String("server", "", "Base URL of the todo service")
	token := fs.String("token", "", "Bearer token issued for your account")

	return &Command{
		Flags: fs,
		Usage: "login --server URL --token JWT",
		Short: "Store and verify service credentials",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if *server == "" || *token == "" {
				return errors.New("both --server and --token are required")
			}
			creds := Credentials{Server: strings.TrimRight(*server, "/"), Token: *token}

			if err := client.NewAPI(creds.Server, creds.Token).Bootstrap(ctx); err != nil {
				return fmt.Errorf("verify credentials: %w", err)
			}

			path, err := a.credentialsPath()
			if err != nil {
				return err
			}
			if err := SaveCredentials(path, creds); err != nil {
				return err
			}
			o.Println("Logged in to", creds.Server)
			return nil
		},
	}
}

func (a *app) listCmd() *Command {
	fs := newFlags("list")
	asJSON := fs.Bool("json", false, "Print the todos as JSON")
	pending := fs.Bool("pending", false, "Only show todos that are not done")

	return &Command{
		Flags: fs,
		Usage: "list [flags]",
		Short: "List your todos in widget order",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			todos, err := conn.List(ctx)
			if err != nil {
				return err
			}

			if *pending {
				kept := todos[:0]
				for _, t := range todos {
					if !t.Done {
						kept = append(kept, t)
					}
				}
				todos = kept
			}

			if *asJSON {
				data, err := json.MarshalIndent(todos, "", "  ")
				if err != nil {
					return err
				}
				o.Println(string(data))
				return nil
			}
			for _, t := range todos {
				o.Println(formatTodo(t))
			}
			return nil
		},
	}
}

func formatTodo(t api.Todo) string {
	check := "[ ]"
	if t.Done {
		check = "[x]"
	}
	return fmt.Sprintf("%d\t%s %s", t.ID, check, t.Content)
}

func (a *app) addCmd() *Command {
	return &Command{
		Flags: newFlags("add"),
		Usage: "add <text>",
		Short: "Add a todo at the top of the list",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return errTextRequired
			}
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			id, err := conn.Create(ctx, content)
			if err != nil {
				return err
			}
			o.Println(id)
			return nil
		},
	}
}

func (a *app) editCmd() *Command {
	return &Command{
		Flags: newFlags("edit"),
		Usage: "edit <id> <text>",
		Short: "Replace a todo's text",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return errors.New("usage: todoctl edit <id> <text>")
			}
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			content := strings.Join(args[1:], " ")

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			resp, err := conn.Update(ctx, api.UpdateTodoRequest{ID: ids[0], Content: &content})
			if err != nil {
				return err
			}
			o.Println(formatTodo(resp.Todo))
			return nil
		},
	}
}

func (a *app) doneCmd(name string, done bool) *Command {
	short := "Mark todos as done"
	if !done {
		short = "Mark todos as not done"
	}

	return &Command{
		Flags: newFlags(name),
		Usage: name + " <id>...",
		Short: short,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				resp, err := conn.Update(ctx, api.UpdateTodoRequest{ID: id, Done: &done})
				if err != nil {
					return fmt.Errorf("todo %d: %w", id, err)
				}
				o.Println(formatTodo(resp.Todo))
			}
			return nil
		},
	}
}

func (a *app) rmCmd() *Command {
	return &Command{
		Flags: newFlags("rm"),
		Usage: "rm <id>...",
		Short: "Delete todos",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			deleted, err := conn.Delete(ctx, ids)
			if err != nil {
				return err
			}
			o.Printf("deleted %d\n", deleted)
			return nil
		},
	}
}

func (a *app) clearDoneCmd() *Command {
	return &Command{
		Flags: newFlags("clear-done"),
		Usage: "clear-done",
		Short: "Delete every completed todo",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			todos, err := conn.List(ctx)
			if err != nil {
				return err
			}

			var ids []uint
			for _, t := range todos {
				if t.Done {
					ids = append(ids, t.ID)
				}
			}
			if len(ids) == 0 {
				o.Println("deleted 0")
				return nil
			}

			deleted, err := conn.Delete(ctx, ids)
			if err != nil {
				return err
			}
			o.Printf("deleted %d\n", deleted)
			return nil
		},
	}
}

func (a *app) reorderCmd() *Command {
	return &Command{
		Flags: newFlags("reorder"),
		Usage: "reorder <id>...",
		Short: "Put todos in the given order",
		Long:  "Put todos in the given order. Todos left out keep their current position.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			resp, err := conn.Reorder(ctx, ids)
			if err != nil {
				return err
			}

			order := make([]string, len(resp.Order))
			for i, id := range resp.Order {
				order[i] = strconv.FormatUint(uint64(id), 10)
			}
			o.Printf("reordered %d: %s\n", resp.Reordered, strings.Join(order, " "))
			return nil
		},
	}
}

func (a *app) widgetCmd() *Command {
	fs := newFlags("widget")
	reorderOnUpdate := fs.Bool("reorder-on-update", false, "Move completed todos to the bottom")

	return &Command{
		Flags: fs,
		Usage: "widget [flags]",
		Short: "Open the interactive todo widget",
		Exec: func(ctx context.Context, _ *IO, _ []string) error {
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			return ui.Run(ctx, conn, client.Options{
				ReorderOnUpdate: *reorderOnUpdate,
				Log:             a.log,
			})
		},
	}
}
