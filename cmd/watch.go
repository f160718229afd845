package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"codeindex/internal/walker"
	"codeindex/internal/watch"
)

var flagSkipInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the project, then keep the index current as files change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		patterns, err := walker.LoadExcludes(a.paths.ExcludeFile)
		if err != nil {
			a.logger.Warn("load excludes", "path", a.paths.ExcludeFile, "err", err)
		}
		w, err := watch.New(a.paths.Root, watch.Options{
			Excluder:   walker.NewExcluder(patterns),
			PrivateDir: a.paths.PrivateDir,
		}, a.logger)
		if err != nil {
			return err
		}

		ch, unsubscribe := a.bus.Subscribe()
		c := a.coordinator(a.bus)
		if err := c.Subscribe(w); err != nil {
			c.Stop()
			c.Wait()
			unsubscribe()
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			printProgress(ch, flagQuiet)
			return nil
		})
		g.Go(func() error {
			defer unsubscribe()
			<-gctx.Done()
			c.Stop()
			c.Wait()
			return nil
		})
		g.Go(func() error {
			if flagSkipInitial {
				return nil
			}
			if err := a.reindex(gctx, c); err != nil && gctx.Err() == nil {
				return fmt.Errorf("initial index: %w", err)
			}
			return nil
		})

		fmt.Printf("Watching %s (ctrl+c to stop)\n", a.paths.Root)
		err = g.Wait()
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&flagSkipInitial, "no-initial", false, "skip the initial full reindex")
	watchCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "only print summaries")
	rootCmd.AddCommand(watchCmd)
}
