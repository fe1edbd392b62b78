package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/christophcemper/syncplus"
	"github.com/christophcemper/syncplus/treefile"
)

// contextOptions turns the persistent flags into options for a context called name.
func contextOptions(cc *cobra.Command, name string) ([]syncplus.Option, error) {
	warnAfter, err := cc.Flags().GetDuration("warn_after")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	opts := []syncplus.Option{syncplus.WithName(name)}
	if warnAfter > 0 {
		opts = append(opts, syncplus.WithWarnAfter(warnAfter))
	}
	return opts, nil
}

func workerFlags(cmd *cobra.Command, workers int) {
	cmd.Flags().IntP("workers", "w", workers, "Number of concurrent callers")
	cmd.Flags().Duration("hold", 5*time.Millisecond, "How long each callable holds the context")
}

func getWorkerFlags(cc *cobra.Command) (int, time.Duration, error) {
	var merr error

	flags := cc.Flags()
	workers, err := flags.GetInt("workers")
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	hold, err := flags.GetDuration("hold")
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	if workers < 1 {
		merr = multierror.Append(merr, fmt.Errorf("workers must be at least 1, got %d", workers))
	}

	if merr != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, merr)
	}
	return workers, hold, nil
}

func printStats(p *printer, name string, stats map[syncplus.Operation]syncplus.OpStats) {
	ops := make([]syncplus.Operation, 0, len(stats))
	for op := range stats {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, op := range ops {
		s := stats[op]
		p.line("%s %s: acquired %d, contentions %d, max wait %v, avg hold %v",
			name, op, s.Acquired, s.Contentions, s.MaxWait.Round(time.Microsecond), s.AvgHeld().Round(time.Microsecond))
	}
}

func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run concurrent Invoke calls and a Marco/Polo handshake on a Monitor",
		RunE: func(cc *cobra.Command, _ []string) error {
			workers, hold, err := getWorkerFlags(cc)
			if err != nil {
				return err
			}
			opts, err := contextOptions(cc, "demo-monitor")
			if err != nil {
				return err
			}

			m := syncplus.NewMonitor(0, opts...)
			defer m.Close()

			var g errgroup.Group
			for i := 0; i < workers; i++ {
				g.Go(func() error {
					m.Invoke(func(v *int) {
						*v++
						time.Sleep(hold)
					})
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			var events []string
			m.Marco(func(v *int) {
				events = append(events, fmt.Sprintf("marco saw %d", *v))
				go m.Polo(func() { events = append(events, "polo ran") })
			})
			m.AwaitPolo()
			stats := m.Stats()

			p := newPrinter(cc.OutOrStdout())
			p.header("monitor")
			p.field("value", syncplus.Call(m, func(v *int) int { return *v }))
			p.field("handshake", strings.Join(events, ", "))
			printStats(p, m.Name(), stats)
			return nil
		},
	}
	workerFlags(cmd, 4)
	return cmd
}

func NewGateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run more callers than permits through a Gate",
		RunE: func(cc *cobra.Command, _ []string) error {
			workers, hold, err := getWorkerFlags(cc)
			if err != nil {
				return err
			}
			permits, err := cc.Flags().GetInt64("permits")
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			if permits < 1 {
				return fmt.Errorf("%w: permits must be at least 1, got %d", ErrInvalidArgument, permits)
			}
			opts, err := contextOptions(cc, "demo-gate")
			if err != nil {
				return err
			}

			gate := syncplus.NewVoidGate(permits, opts...)
			defer gate.Close()

			var g errgroup.Group
			for i := 0; i < workers; i++ {
				g.Go(func() error {
					gate.Exec(func() { time.Sleep(hold) })
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			p := newPrinter(cc.OutOrStdout())
			p.header("gate")
			p.field("permits", gate.Capacity())
			p.field("peak", gate.Peak())
			printStats(p, gate.Name(), gate.Stats())
			return nil
		},
	}
	workerFlags(cmd, 8)
	cmd.Flags().Int64P("permits", "p", 2, "Number of permits")
	return cmd
}

func NewRWCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rw",
		Short: "Mix readers and writers on an RW under a preference policy",
		RunE: func(cc *cobra.Command, _ []string) error {
			workers, hold, err := getWorkerFlags(cc)
			if err != nil {
				return err
			}

			var merr error

			flags := cc.Flags()
			modeName, err := flags.GetString("mode")
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			mode, err := syncplus.ParseMode(modeName)
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			writers, err := flags.GetInt("writers")
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			if merr != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, merr)
			}

			opts, err := contextOptions(cc, "demo-rw")
			if err != nil {
				return err
			}
			rw := syncplus.NewRW(0, append(opts, syncplus.WithMode(mode))...)
			defer rw.Close()

			var (
				g     errgroup.Group
				order = syncplus.NewMonitor([]string(nil))
			)
			for i := 0; i < workers; i++ {
				g.Go(func() error {
					rw.Read(func(*int) { time.Sleep(hold) })
					order.Invoke(func(o *[]string) { *o = append(*o, "r") })
					return nil
				})
			}
			for i := 0; i < writers; i++ {
				g.Go(func() error {
					rw.Invoke(func(v *int) {
						*v++
						time.Sleep(hold)
					})
					order.Invoke(func(o *[]string) { *o = append(*o, "W") })
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			stats := rw.Stats()

			p := newPrinter(cc.OutOrStdout())
			p.header("rw")
			p.field("mode", rw.Mode())
			p.field("value", syncplus.ReadCall(rw, func(v *int) int { return *v }))
			p.field("completion order", strings.Join(syncplus.Call(order, func(o *[]string) []string { return *o }), ""))
			printStats(p, rw.Name(), stats)
			return nil
		},
	}
	workerFlags(cmd, 6)
	cmd.Flags().String("mode", "fair", "Preference policy (fair, reader, writer)")
	cmd.Flags().Int("writers", 2, "Number of concurrent writers")
	return cmd
}

const defaultTree = `
name: root
kind: monitor
int: 1
children:
  - name: pool
    kind: gate
    permits: 2
    text: shared
    children:
      - name: leaf
        kind: monitor
        int: 2
  - name: config
    kind: rw
    mode: writer
    text: v1
`

func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Broadcast over a tree of contexts and deliver to a typed node",
		RunE: func(cc *cobra.Command, _ []string) error {
			var merr error

			flags := cc.Flags()
			file, err := flags.GetString("file")
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			index, err := flags.GetInt("int-index")
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			value, err := flags.GetInt("int-value")
			if err != nil {
				merr = multierror.Append(merr, err)
			}
			if merr != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, merr)
			}

			var tree *syncplus.Tree
			if file != "" {
				tree, err = treefile.LoadFile(file)
			} else {
				tree, err = treefile.Load(strings.NewReader(defaultTree))
			}
			if err != nil {
				return fmt.Errorf("failed loading tree: %w", err)
			}
			defer tree.Close()

			p := newPrinter(cc.OutOrStdout())
			p.header("tree")
			p.field("nodes", tree.Len())

			if index >= 0 {
				if err := syncplus.Send[int](tree, index).Store(value); err != nil {
					return fmt.Errorf("failed delivering value: %w", err)
				}
				p.line("stored %d in int node #%d", value, index)
			}

			tree.Invoke(func(v syncplus.Visit) {
				payload := "-"
				switch x := v.Value.(type) {
				case *int:
					payload = fmt.Sprint(*x)
				case *string:
					payload = fmt.Sprintf("%q", *x)
				}
				p.line("%s%s (%s) %s", strings.Repeat("  ", v.Depth), v.Name, v.Kind, payload)
			})
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Tree description (YAML); a built-in tree is used when empty")
	cmd.Flags().Int("int-index", -1, "Store --int-value into the int node with this pre-order index")
	cmd.Flags().Int("int-value", 0, "Value for --int-index")
	return cmd
}

func parseFilters(names []string) ([]syncplus.LockFilter, error) {
	var (
		filters []syncplus.LockFilter
		merr    error
	)
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "pending":
			filters = append(filters, syncplus.ShowPendingShared, syncplus.ShowPendingExclusive)
		case "active":
			filters = append(filters, syncplus.ShowActiveShared, syncplus.ShowActiveExclusive)
		case "shared":
			filters = append(filters, syncplus.ShowPendingShared, syncplus.ShowActiveShared)
		case "exclusive":
			filters = append(filters, syncplus.ShowPendingExclusive, syncplus.ShowActiveExclusive)
		case "stats":
			filters = append(filters, syncplus.ShowStats)
		default:
			merr = multierror.Append(merr, fmt.Errorf("unknown filter %q", name))
		}
	}
	if merr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, merr)
	}
	return filters, nil
}

func NewDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Create contention on named contexts and print the global registry",
		RunE: func(cc *cobra.Command, _ []string) error {
			names, err := cc.Flags().GetStringSlice("filter")
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			filters, err := parseFilters(names)
			if err != nil {
				return err
			}

			mOpts, err := contextOptions(cc, "dump-monitor")
			if err != nil {
				return err
			}
			rwOpts, err := contextOptions(cc, "dump-rw")
			if err != nil {
				return err
			}
			m := syncplus.NewVoidMonitor(mOpts...)
			rw := syncplus.NewRW("", rwOpts...)
			defer m.Close()
			defer rw.Close()

			release := make(chan struct{})
			held := make(chan struct{}, 3)

			var g errgroup.Group
			g.Go(func() error {
				m.Exec(func() {
					held <- struct{}{}
					<-release
				})
				return nil
			})
			for i := 0; i < 2; i++ {
				g.Go(func() error {
					rw.Read(func(*string) {
						held <- struct{}{}
						<-release
					})
					return nil
				})
			}
			for i := 0; i < 3; i++ {
				<-held
			}
			// one waiter per context
			g.Go(func() error {
				m.Exec(func() {})
				return nil
			})
			g.Go(func() error {
				rw.Write("done")
				return nil
			})
			for len(m.Pending()) == 0 || len(rw.Pending()) == 0 {
				time.Sleep(time.Millisecond)
			}

			p := newPrinter(cc.OutOrStdout())
			p.header("registry")
			fmt.Fprint(cc.OutOrStdout(), syncplus.DumpAll(filters...))

			close(release)
			return g.Wait()
		},
	}
	cmd.Flags().StringSlice("filter", nil, "Sections to show: pending, active, shared, exclusive, stats (default all)")
	return cmd
}
