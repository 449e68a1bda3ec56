package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/internal/store"
)

var refdataCmd = &cobra.Command{
	Use:   "refdata",
	Short: "Manage the department reference data cache",
}

var refdataWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Load departments into the local cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		codes, _ := cmd.Flags().GetStringSlice("departments")
		if len(codes) == 0 {
			codes = refdata.AllDepartments()
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		env, err := initRefdataEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		loaded, failed := warmDepartments(ctx, env.RefData, codes, concurrency)
		zap.L().Info("refdata warm complete",
			zap.Int("requested", len(codes)),
			zap.Int("loaded", loaded),
			zap.Int("failed", failed),
		)

		st, err := env.Cache.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d/%d departments (%d failed). Cache: %d entries, %d expired.\n",
			loaded, len(codes), failed, st.Total, st.Expired)
		return nil
	},
}

var refdataPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired departments from the local cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("refdata"); err != nil {
			return err
		}

		st, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.Purge(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired departments.\n", n)
		return nil
	},
}

var refdataStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("refdata"); err != nil {
			return err
		}

		st, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		printCacheStats(os.Stdout, cfg.RefData.CachePath, stats)
		return nil
	},
}

// initRefdataEnv builds a reference data store backed by the SQLite cache.
func initRefdataEnv(ctx context.Context) (*searchEnv, error) {
	if err := cfg.Validate("refdata"); err != nil {
		return nil, err
	}
	env := &searchEnv{}
	loader, err := initRefLoader(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	if env.Cache == nil {
		env.Close()
		return nil, eris.Errorf("refdata: cache %s could not be opened", cfg.RefData.CachePath)
	}
	env.RefData = refdata.NewStore(loader, refdata.NewMemoryCache())
	return env, nil
}

// warmDepartments loads every code through the store and counts outcomes.
// Individual failures are logged and do not stop the run.
func warmDepartments(ctx context.Context, rs *refdata.Store, codes []string, concurrency int) (loaded, failed int) {
	if concurrency < 1 {
		concurrency = 1
	}
	var ok, bad atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, code := range codes {
		code := strings.TrimSpace(code)
		g.Go(func() error {
			if _, err := rs.Department(gctx, code); err != nil {
				bad.Add(1)
				zap.L().Warn("refdata: warm department failed", zap.String("department", code), zap.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(ok.Load()), int(bad.Load())
}

func printCacheStats(out io.Writer, path string, st store.Stats) {
	_, _ = fmt.Fprintf(out, "Cache:    %s\n", path)
	_, _ = fmt.Fprintf(out, "Entries:  %d\n", st.Total)
	_, _ = fmt.Fprintf(out, "Expired:  %d\n", st.Expired)
}

func init() {
	refdataWarmCmd.Flags().StringSlice("departments", nil, "department codes to load (default all)")
	refdataWarmCmd.Flags().Int("concurrency", 4, "departments loaded in parallel")

	refdataCmd.AddCommand(refdataWarmCmd)
	refdataCmd.AddCommand(refdataPurgeCmd)
	refdataCmd.AddCommand(refdataStatusCmd)
	rootCmd.AddCommand(refdataCmd)
}
