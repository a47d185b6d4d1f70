// Command pmbench drives a fastfair tree with the workloads of the
// original FAST & FAIR evaluation: a single-threaded warm-up over half
// the key set, then either separate concurrent search and insert phases
// or a mixed per-key workload across T goroutines.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Giulio2002/fastfair"
	"github.com/Giulio2002/fastfair/internal/keygen"
)

func main() {
	var (
		numData    = flag.Int("n", 1000000, "number of keys")
		numThreads = flag.Int("t", 1, "worker goroutines")
		poolPath   = flag.String("p", "", "pool file path (overrides config)")
		mixed      = flag.Bool("mixed", false, "run the mixed per-key workload")
		configPath = flag.String("config", "", "yaml config file")
	)
	flag.Parse()

	if err := run(*numData, *numThreads, *poolPath, *mixed, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(numData, numThreads int, poolPath string, mixed bool, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if poolPath != "" {
		cfg.PoolPath = poolPath
	}

	logger, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(fastfair.NewCollector())
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	opts := []fastfair.Option{
		fastfair.WithPoolSize(cfg.PoolSize),
		fastfair.WithLogger(logger),
	}
	if cfg.WriteLatencyNS > 0 {
		opts = append(opts, fastfair.WithWriteLatency(time.Duration(cfg.WriteLatencyNS)))
	}

	t, err := fastfair.Open(cfg.PoolPath, opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	keys := keygen.New(cfg.Seed).Keys(numData)
	half := numData / 2

	// Warm-up: first half, single-threaded
	start := time.Now()
	for _, k := range keys[:half] {
		if err := t.Insert(k, uint64(k)|1); err != nil {
			return err
		}
	}
	logger.Info("warm-up done",
		zap.Int("keys", half),
		zap.Duration("elapsed", time.Since(start)))

	if mixed {
		return runMixed(t, logger, keys, half, numThreads)
	}
	return runPhases(t, logger, keys, half, numThreads)
}

// runPhases measures concurrent searches over the warm half, then
// concurrent inserts of the second half.
func runPhases(t *fastfair.Tree, logger *zap.Logger, keys []int64, half, numThreads int) error {
	perThread := half / numThreads

	start := time.Now()
	g, _ := errgroup.WithContext(context.Background())
	for tid := 0; tid < numThreads; tid++ {
		from := perThread * tid
		to := from + perThread
		if tid == numThreads-1 {
			to = half
		}
		g.Go(func() error {
			for _, k := range keys[from:to] {
				t.Search(k)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("concurrent search done",
		zap.Int("threads", numThreads),
		zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	g, _ = errgroup.WithContext(context.Background())
	for tid := 0; tid < numThreads; tid++ {
		from := half + perThread*tid
		to := from + perThread
		if tid == numThreads-1 {
			to = len(keys)
		}
		g.Go(func() error {
			for _, k := range keys[from:to] {
				if err := t.Insert(k, uint64(k)|1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("concurrent insert done",
		zap.Int("threads", numThreads),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// runMixed interleaves inserts, searches and deletes per key, with the
// operation mix chosen by key index class (i % 4), matching the
// original evaluation's MIXED mode.
func runMixed(t *fastfair.Tree, logger *zap.Logger, keys []int64, half, numThreads int) error {
	perThread := half / numThreads

	start := time.Now()
	g, _ := errgroup.WithContext(context.Background())
	for tid := 0; tid < numThreads; tid++ {
		from := half + perThread*tid
		to := from + perThread
		if tid == numThreads-1 {
			to = len(keys)
		}
		g.Go(func() error {
			for i := from; i < to; i++ {
				sidx := i - half
				search := func(j int) { t.Search(keys[(sidx+j+(i%4)*8)%half]) }

				switch i % 4 {
				case 0:
					if err := t.Insert(keys[i], uint64(keys[i])|1); err != nil {
						return err
					}
					for j := 0; j < 4; j++ {
						search(j)
					}
					t.Delete(keys[i])
				case 1:
					for j := 0; j < 3; j++ {
						search(j)
					}
					if err := t.Insert(keys[i], uint64(keys[i])|1); err != nil {
						return err
					}
					search(3)
				case 2:
					for j := 0; j < 2; j++ {
						search(j)
					}
					if err := t.Insert(keys[i], uint64(keys[i])|1); err != nil {
						return err
					}
					for j := 2; j < 4; j++ {
						search(j)
					}
				case 3:
					for j := 0; j < 4; j++ {
						search(j)
					}
					if err := t.Insert(keys[i], uint64(keys[i])|1); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("mixed workload done",
		zap.Int("threads", numThreads),
		zap.Duration("elapsed", time.Since(start)))

	s := fastfair.ReadStats()
	logger.Info("counters",
		zap.Uint64("inserts", s.Inserts),
		zap.Uint64("searches", s.Searches),
		zap.Uint64("deletes", s.Deletes),
		zap.Uint64("splits", s.Splits),
		zap.Uint64("clflush", s.Flushes),
		zap.Uint64("reader_retries", s.ReaderRetries))

	return nil
}
