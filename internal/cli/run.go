package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/client"
)

// app is the state shared by every command of one invocation.
type app struct {
	env map[string]string
	log zerolog.Logger
}

// Run executes todoctl with args (args[0] is the program name) and returns
// the exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string, env map[string]string) int {
	o := NewIO(out, errOut)
	a := &app{
		env: env,
		log: zerolog.New(errOut).Level(logLevel(env)).With().Timestamp().Logger(),
	}
	commands := a.commands()

	if len(args) < 2 || args[1] == "-h" || args[1] == "--help" || args[1] == "help" {
		printUsage(o, commands)
		return 0
	}

	name := args[1]
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, o, args[2:])
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(NewIO(errOut, errOut), commands)
	return 1
}

func logLevel(env map[string]string) zerolog.Level {
	if env["TODOCTL_DEBUG"] != "" {
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

func printUsage(o *IO, commands []*Command) {
	o.Println("Usage: todoctl <command> [args]")
	o.Println()
	o.Println("Commands:")
	for _, cmd := range commands {
		o.Println(cmd.HelpLine())
	}
	o.Println()
	o.Println("Credentials are read from $TODOCTL_CONFIG or $XDG_CONFIG_HOME/todoctl/credentials.json.")
}

func (a *app) credentialsPath() (string, error) {
	return CredentialsPath(a.env)
}

// connect loads the stored credentials and bootstraps a session.
func (a *app) connect(ctx context.Context) (*client.API, error) {
	path, err := a.credentialsPath()
	if err != nil {
		return nil, err
	}
	creds, err := LoadCredentials(path)
	if err != nil {
		return nil, err
	}

	conn := client.NewAPI(creds.Server, creds.Token, client.WithLogger(a.log))
	if err := conn.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("start session with %s: %w", creds.Server, err)
	}
	return conn, nil
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}
