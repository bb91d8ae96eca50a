// Command corestore inspects, clears, backs up and restores a corestore
// directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/codec"
	"github.com/hupe1980/corestore/kv/pebblekv"
)

type app struct {
	v   *viper.Viper
	cfg Config
	log *corestore.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "corestore",
		Short:         "corestore is the command line client for corestore directories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.v, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log, err = cfg.logger()
			return err
		},
	}
	registerFlags(root.PersistentFlags())

	root.AddCommand(
		a.listCommand(),
		a.infoCommand(),
		a.coreCommand(),
		a.treeCommand(),
		a.clearCommand(),
		a.backupCommand(),
		a.restoreCommand(),
		a.backupsCommand(),
	)
	return root
}

type openMode int

const (
	// openReadOnly fails on a missing store and rejects every write.
	openReadOnly openMode = iota
	// openExisting fails on a missing store.
	openExisting
	// openCreate creates a missing store.
	openCreate
)

// openStorage opens the configured directory.
func (a *app) openStorage(mode openMode) (*corestore.Storage, error) {
	if a.cfg.Dir == "" {
		return nil, errNoDir
	}

	var engineOpts []pebblekv.Option
	switch mode {
	case openReadOnly:
		engineOpts = append(engineOpts, pebblekv.WithReadOnly(), pebblekv.WithErrorIfNotExists())
	case openExisting:
		engineOpts = append(engineOpts, pebblekv.WithErrorIfNotExists())
	}

	s, err := corestore.Open(a.cfg.Dir,
		corestore.WithLogger(a.log),
		corestore.WithEngineOptions(engineOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.cfg.Dir, err)
	}
	return s, nil
}

// print writes v as indented JSON when --output=json and calls text otherwise.
func (a *app) print(w io.Writer, v any, text func(w io.Writer)) error {
	switch a.cfg.Output {
	case "", "text":
		text(w)
		return nil
	case "json":
		b, err := codec.GoJSON{}.MarshalIndent(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	default:
		return fmt.Errorf("unknown output format %q", a.cfg.Output)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "corestore:", err)
		stop()
		os.Exit(1)
	}
}
