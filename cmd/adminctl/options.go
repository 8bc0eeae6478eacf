package main

// Options is the root command that groups sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Config     string         `short:"f" long:"config" description:"YAML config file (same keys as the environment variables)"`
	Login      *LoginCmd      `command:"login" description:"Sign in and store the session"`
	Logout     *LogoutCmd     `command:"logout" description:"Clear the stored session"`
	Whoami     *WhoamiCmd     `command:"whoami" description:"Show the stored session"`
	Get        *GetCmd        `command:"get" description:"GET a backend path and print the JSON response"`
	UsersCount *UsersCountCmd `command:"users-count" description:"Print the number of users (cached)"`
	Watch      *WatchCmd      `command:"watch" description:"Follow session changes made by other processes"`
}

// Init instantiates the sub-command referenced by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "login":
		o.Login = &LoginCmd{}
	case "logout":
		o.Logout = &LogoutCmd{}
	case "whoami":
		o.Whoami = &WhoamiCmd{}
	case "get":
		o.Get = &GetCmd{}
	case "users-count":
		o.UsersCount = &UsersCountCmd{}
	case "watch":
		o.Watch = &WatchCmd{}
	}
}
