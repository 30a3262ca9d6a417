package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chirst/relq/db"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

const (
	benchTable = "CREATE TABLE IF NOT EXISTS relq_bench (id INTEGER PRIMARY KEY, k VARCHAR(16) UNIQUE, v INTEGER)"
	benchPoint = "SELECT k, v FROM relq_bench WHERE id = ?"
	benchWrite = "UPDATE relq_bench SET v = v + 1 WHERE id = ?"
	benchSeed  = "INSERT INTO relq_bench (k, v) VALUES (?, 0)"
)

func newBenchCommand(a *app) *cobra.Command {
	var (
		rows       int
		writeRatio float64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run point reads and updates from a pool of workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &bench{
				db:         a.db,
				workers:    a.cfg.Bench.Workers,
				queries:    a.cfg.Bench.Queries,
				rows:       rows,
				writeRatio: writeRatio,
			}
			report, err := b.run()
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Int("workers", 4, "number of concurrent workers")
	flags.Int("queries", 1000, "number of queries to run")
	flags.IntVar(&rows, "rows", 1000, "rows in the benchmark table")
	flags.Float64Var(&writeRatio, "write-ratio", 0.1, "share of queries that update a row")
	return cmd
}

type bench struct {
	db         *db.DB
	workers    int
	queries    int
	rows       int
	writeRatio float64
}

type benchReport struct {
	queries int
	errors  int64
	elapsed time.Duration
	// latencies is sorted.
	latencies []time.Duration
}

// seed creates the benchmark table and fills it up to b.rows rows.
func (b *bench) seed() error {
	if res := b.db.Execute(benchTable); res.Err != nil {
		return res.Err
	}
	res := b.db.Execute("SELECT COUNT(*) FROM relq_bench")
	if res.Err != nil {
		return res.Err
	}
	row, err := res.Result.Row(0)
	res.Result.Close()
	if err != nil {
		return err
	}
	n := row[0].Long()
	insert, err := b.db.Prepare(benchSeed)
	if err != nil {
		return err
	}
	for i := int(n); i < b.rows; i++ {
		if res := insert.Execute(fmt.Sprintf("key-%d", i)); res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func (b *bench) run() (*benchReport, error) {
	if b.rows < 1 {
		return nil, fmt.Errorf("bench needs at least one row")
	}
	if err := b.seed(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	point, err := b.db.Prepare(benchPoint)
	if err != nil {
		return nil, err
	}
	write, err := b.db.Prepare(benchWrite)
	if err != nil {
		return nil, err
	}

	var failed atomic.Int64
	pool, err := ants.NewPool(b.workers, ants.WithPanicHandler(func(v any) {
		failed.Add(1)
	}))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	latencies := make([]time.Duration, b.queries)
	start := time.Now()
	err = dispatch(pool.Submit, b.queries, func(i int) {
		id := rand.IntN(b.rows) + 1
		stmt := point
		if rand.Float64() < b.writeRatio {
			stmt = write
		}
		began := time.Now()
		res := stmt.Execute(id)
		latencies[i] = time.Since(began)
		if res.Err != nil {
			failed.Add(1)
			return
		}
		if res.Result != nil {
			res.Result.Close()
		}
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	slices.Sort(latencies)
	return &benchReport{
		queries:   b.queries,
		errors:    failed.Load(),
		elapsed:   elapsed,
		latencies: latencies,
	}, nil
}

// dispatch submits task for every i below n and waits for the submitted tasks
// to finish. When submit fails no further tasks are submitted, and the tasks
// already running are still waited for before the error is returned.
func dispatch(submit func(func()) error, n int, task func(i int)) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for i := range n {
		wg.Add(1)
		err := submit(func() {
			defer wg.Done()
			task(i)
		})
		if err != nil {
			wg.Done()
			return err
		}
	}
	return nil
}

// percentile returns the latency below which p percent of queries finished.
func (r *benchReport) percentile(p float64) time.Duration {
	if len(r.latencies) == 0 {
		return 0
	}
	i := int(float64(len(r.latencies)-1) * p / 100)
	return r.latencies[i]
}

func (r *benchReport) print(w io.Writer) {
	qps := 0.0
	if r.elapsed > 0 {
		qps = float64(r.queries) / r.elapsed.Seconds()
	}
	fmt.Fprintf(w, "queries: %d\n", r.queries)
	fmt.Fprintf(w, "errors:  %d\n", r.errors)
	fmt.Fprintf(w, "elapsed: %s\n", r.elapsed)
	fmt.Fprintf(w, "qps:     %.0f\n", qps)
	fmt.Fprintf(w, "p50:     %s\n", r.percentile(50))
	fmt.Fprintf(w, "p99:     %s\n", r.percentile(99))
}
