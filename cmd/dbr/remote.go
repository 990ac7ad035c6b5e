package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// RemotesConfig is the on-disk list of named servers.
type RemotesConfig struct {
	Active  string            `toml:"active" json:"active,omitempty"`
	Remotes map[string]Remote `toml:"remotes" json:"remotes"`
}

// Remote is a named server profile. URL is the gRPC address.
type Remote struct {
	URL          string `toml:"url" json:"url"`
	HTTPURL      string `toml:"http_url,omitempty" json:"http_url,omitempty"`
	NATSURL      string `toml:"nats_url,omitempty" json:"nats_url,omitempty"`
	Organization string `toml:"organization,omitempty" json:"organization,omitempty"`
}

var reRemoteName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func (r Remote) validate(name string) error {
	var errs []error
	if !reRemoteName.MatchString(name) {
		errs = append(errs, fmt.Errorf("invalid remote name %q", name))
	}
	if _, _, err := net.SplitHostPort(r.URL); err != nil {
		errs = append(errs, fmt.Errorf("grpc address %q: want host:port", r.URL))
	}
	check := func(field, raw string, schemes ...string) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || !slices.Contains(schemes, u.Scheme) {
			errs = append(errs, fmt.Errorf("%s %q: want %v URL", field, raw, schemes))
		}
	}
	check("http url", r.HTTPURL, "http", "https")
	check("nats url", r.NATSURL, "nats", "tls")
	return errors.Join(errs...)
}

// remotesPath is ~/.local/state/dbr/remotes.toml unless DBR_REMOTES_FILE
// names another file.
func remotesPath() (string, error) {
	if p := os.Getenv("DBR_REMOTES_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "dbr", "remotes.toml"), nil
}

func loadRemotes() (RemotesConfig, error) {
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	path, err := remotesPath()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// saveRemotes replaces the remotes file atomically. The file may hold
// internal addresses, so it is private to the user.
func saveRemotes(cfg RemotesConfig) error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotes()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotes(cfg)
}

func lookupRemote(cfg *RemotesConfig, name string) (Remote, error) {
	r, ok := cfg.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

var (
	remoteOnce   sync.Once
	cachedRemote Remote
	haveRemote   bool
)

// activeRemote returns the active profile, read once per process.
func activeRemote() (Remote, bool) {
	remoteOnce.Do(func() {
		cfg, err := loadRemotes()
		if err != nil || cfg.Active == "" {
			return
		}
		cachedRemote, haveRemote = cfg.Remotes[cfg.Active]
	})
	return cachedRemote, haveRemote
}

func activeRemoteNATSURL() string {
	r, _ := activeRemote()
	return r.NATSURL
}

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named server remotes",
	GroupID: "system",
	// Remote subcommands only touch the local remotes file.
	PersistentPreRunE: noClient,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <grpc-addr>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: args[1]}
		r.HTTPURL, _ = cmd.Flags().GetString("http")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		r.Organization, _ = cmd.Flags().GetString("organization")
		if err := r.validate(name); err != nil {
			return err
		}

		verb := "added"
		err := editRemotes(func(cfg *RemotesConfig) error {
			if _, ok := cfg.Remotes[name]; ok {
				verb = "updated"
			}
			cfg.Remotes[name] = r
			if len(cfg.Remotes) == 1 {
				cfg.Active = name
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q %s (%s)\n", name, verb, r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := editRemotes(func(cfg *RemotesConfig) error {
			if _, err := lookupRemote(cfg, name); err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := editRemotes(func(cfg *RemotesConfig) error {
			if _, err := lookupRemote(cfg, name); err != nil {
				return err
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using remote %q\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes (* marks the active one)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), cfg, func(w io.Writer) error {
			if len(cfg.Remotes) == 0 {
				_, err := fmt.Fprintln(w, "no remotes configured; add one with 'dbr remote add'")
				return err
			}
			tw := newTable(w)
			fmt.Fprintln(tw, "  NAME\tGRPC\tHTTP\tORG")
			for _, name := range slices.Sorted(maps.Keys(cfg.Remotes)) {
				r := cfg.Remotes[name]
				mark := "  "
				if name == cfg.Active {
					mark = "* "
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", mark, name, r.URL, orDash(r.HTTPURL), orDash(r.Organization))
			}
			return tw.Flush()
		})
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return errors.New("no active remote; name one or run 'dbr remote use <name>'")
		}
		r, err := lookupRemote(&cfg, name)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), r, func(w io.Writer) error {
			tw := newTable(w)
			if name == cfg.Active {
				name += " (active)"
			}
			fmt.Fprintf(tw, "name:\t%s\n", name)
			fmt.Fprintf(tw, "grpc:\t%s\n", r.URL)
			fmt.Fprintf(tw, "http:\t%s\n", orDash(r.HTTPURL))
			fmt.Fprintf(tw, "nats:\t%s\n", orDash(r.NATSURL))
			fmt.Fprintf(tw, "organization:\t%s\n", orDash(r.Organization))
			return tw.Flush()
		})
	},
}

func init() {
	remoteAddCmd.Flags().String("http", "", "HTTP base URL (http:// or https://)")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for 'dbr events watch --nats'")
	remoteAddCmd.Flags().String("organization", "", "default organization id")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
