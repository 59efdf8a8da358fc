// Package balter is a self-tuning load-testing engine. A Scenario runs a
// transaction body under one or more throughput constraints (a flat TPS
// cap, a target error rate, a target latency quantile) and adapts worker
// concurrency and issue rate on the fly to find and hold the largest
// throughput consistent with those constraints.
//
// A minimal scenario looks like:
//
//	stats, err := balter.New("checkout", func(ctx context.Context) error {
//		_, err := balter.Transaction(ctx, func(ctx context.Context) (int, error) {
//			return checkoutOnce(ctx)
//		})
//		return err
//	}).
//		ErrorRate(0.03).
//		Duration(30 * time.Second).
//		Run(context.Background())
package balter
