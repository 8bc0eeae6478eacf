package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-finadmin-client/authmodel"
	"github.com/jrsteele09/go-finadmin-client/cache"
	"github.com/jrsteele09/go-finadmin-client/sessions"
)

const usersCountPath = "/admin/users/count"

// LoginCmd signs in with an email and password. The password is read from stdin when
// not given as a flag.
type LoginCmd struct {
	Email    string `short:"e" long:"email" required:"true" description:"admin email"`
	Password string `short:"p" long:"password" description:"password (read from stdin when omitted)"`
}

func (c *LoginCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		password := c.Password
		if password == "" {
			fmt.Fprint(a.out, "Password: ")
			line, err := bufio.NewReader(a.in).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		user, err := a.controller.Login(ctx, authmodel.Credentials{Email: c.Email, Password: password})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.Email, user.Role)
		return nil
	})
}

// LogoutCmd clears the stored tokens and user.
type LogoutCmd struct{}

func (c *LogoutCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.controller.Hydrate(ctx)
		a.controller.Logout()
		fmt.Fprintln(a.out, "Signed out")
		return nil
	})
}

// WhoamiCmd prints the restored session, or the backend's view of it with --remote.
type WhoamiCmd struct {
	Remote bool `short:"r" long:"remote" description:"ask the backend (GET /admin/me)"`
}

func (c *WhoamiCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.controller.Hydrate(ctx)
		session := a.controller.Session()
		if !c.Remote {
			if session.User == nil {
				fmt.Fprintln(a.out, "Not signed in")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s) %s\n", session.User.Email, session.User.Role, session.State)
			return nil
		}
		if session.State != sessions.Authenticated {
			return fmt.Errorf("not signed in")
		}
		var me map[string]any
		if err := a.client.GetJSON(ctx, "/admin/me", nil, &me); err != nil {
			return err
		}
		return printJSON(a, me)
	})
}

// GetCmd fetches a path through the authenticated client.
type GetCmd struct {
	Query []string `short:"q" long:"query" description:"query parameter as key=value (repeatable)"`
	AI    bool     `long:"ai" description:"send to the AI service instead of the admin backend"`
	Args  struct {
		Path string `positional-arg-name:"path" required:"true"`
	} `positional-args:"yes"`
}

func (c *GetCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		client := a.client
		if c.AI {
			if a.ai == nil {
				return fmt.Errorf("AI_BASE_URL is not configured")
			}
			client = a.ai
		}
		query, err := parseQuery(c.Query)
		if err != nil {
			return err
		}

		a.controller.Hydrate(ctx)
		var body any
		if err := client.GetJSON(ctx, c.Args.Path, query, &body); err != nil {
			return err
		}
		return printJSON(a, body)
	})
}

// UsersCountCmd reads the user count through the request cache; --parallel fires
// several lookups at once to show they share one request.
type UsersCountCmd struct {
	Parallel int           `long:"parallel" default:"1" description:"concurrent lookups"`
	TTL      time.Duration `long:"ttl" default:"30s" description:"cache lifetime"`
}

func (c *UsersCountCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.controller.Hydrate(ctx)
		fetch := func(ctx context.Context) (int, error) {
			var resp struct {
				Count int `json:"count"`
			}
			if err := a.client.GetJSON(ctx, usersCountPath, nil, &resp); err != nil {
				return 0, err
			}
			return resp.Count, nil
		}

		parallel := max(c.Parallel, 1)
		counts := make([]int, parallel)
		errs := make([]error, parallel)
		var wg sync.WaitGroup
		for i := 0; i < parallel; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				counts[i], errs[i] = cache.Get(ctx, a.cache, "users-count", c.TTL, fetch)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		fmt.Fprintln(a.out, counts[0])
		return nil
	})
}

// WatchCmd prints session changes caused by other adminctl processes writing the user
// file, until interrupted.
type WatchCmd struct{}

func (c *WatchCmd) Execute(_ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := os.MkdirAll(filepath.Dir(a.users.Path()), 0o700); err != nil {
			return err
		}
		bus, err := sessions.NewFileBus(a.users.Path())
		if err != nil {
			return err
		}
		defer bus.Close()

		controller := sessions.NewController(a.tokens, a.users, bus, a.client, a.client.Coordinator(),
			sessions.WithMaxAges(a.cfg.GetAccessTokenMaxAge(), a.cfg.GetRefreshTokenMaxAge()))
		defer controller.Close()

		unsubscribe := controller.Subscribe(func(s sessions.Session) {
			if s.User != nil {
				fmt.Fprintf(a.out, "%s %s %s\n", time.Now().Format(time.TimeOnly), s.State, s.User.Email)
				return
			}
			fmt.Fprintf(a.out, "%s %s\n", time.Now().Format(time.TimeOnly), s.State)
		})
		defer unsubscribe()

		controller.Hydrate(ctx)
		<-ctx.Done()
		return nil
	})
}

func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q, want key=value", pair)
		}
		query.Add(key, value)
	}
	return query, nil
}

func printJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
