package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsync/internal/drift"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/syncclient"
	"github.com/smazurov/camsync/internal/syncproto"
)

// CreateFollowCmd creates the follow command.
func CreateFollowCmd() *cobra.Command {
	var server string
	var tiles int
	var liveLag float64
	var quiet bool

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Run a headless sync client",
		Long: `Connects to a camsync server like a browser would and steers one simulated ` +
			`player per stream with the drift controller, printing every correction.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.GetLogger("client")
			out := c.OutOrStdout()

			var printer *correctionPrinter
			if !quiet {
				printer = &correctionPrinter{out: out}
			}
			var tilesMu sync.Mutex
			var attached []*drift.Tile
			defer func() {
				tilesMu.Lock()
				defer tilesMu.Unlock()
				for _, tile := range attached {
					tile.Close()
				}
			}()

			var client *syncclient.Client
			attach := func(n int) {
				tilesMu.Lock()
				defer tilesMu.Unlock()
				for id := 1; id <= n; id++ {
					tile := drift.NewTile(id, drift.NewSimulatedSurface(nil), drift.WithObserver(printer.observe))
					attached = append(attached, tile)
					client.Attach(tile)
				}
			}

			opts := syncclient.Options{
				BaseURL: server,
				LiveLag: liveLag,
				OnStatus: func(status syncclient.Status, err error) {
					if err != nil {
						logger.Warn("Sync status changed", "status", status, "error", err)
						return
					}
					logger.Info("Sync status changed", "status", status)
				},
			}
			// Without --tiles, size from the catalog Run loads with retries
			if tiles <= 0 {
				opts.OnCatalog = func(cat syncproto.Catalog) {
					logger.Info("Sizing tiles from catalog", "tiles", len(cat.Streams))
					attach(len(cat.Streams))
				}
			}

			client, err := syncclient.New(opts)
			if err != nil {
				return err
			}
			if tiles > 0 {
				attach(tiles)
			}

			logger.Info("Following server", "server", server)
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8000", "Server base URL")
	cmd.Flags().IntVarP(&tiles, "tiles", "n", 0, "Simulated players, 0 for one per catalog stream")
	cmd.Flags().Float64Var(&liveLag, "live-lag", drift.DefaultLiveLag, "Seconds behind the live edge to play at")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only log status changes")
	return cmd
}

// correctionPrinter writes one line per pass that did something.
type correctionPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *correctionPrinter) observe(tile int, state drift.State, c drift.Correction) {
	if p == nil || c.Zone == drift.ZoneHold || c.Zone == drift.ZoneNotReady {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "tile %d  %-15s target=%8.3f drift=%+7.3f rate=%.3f\n",
		tile, state, c.Target, c.Drift, c.Rate)
}
