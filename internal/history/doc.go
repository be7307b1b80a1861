// Package history keeps a local SQLite record of facade attribute changes.
//
// A Recorder is registered as a facade publisher; every published change
// becomes a row of the node_history table. Rows are pruned by age so the
// database stays bounded when the time-series archive is unavailable.
//
//	repo := history.NewSQLiteRepository(db.DB)
//	rec := history.NewRecorder(repo, log.Component("history"))
//	dev := facade.New("boiler", facade.WithPublishers(rec))
//	go rec.RunPruner(ctx, cfg.GetRetention(), cfg.GetPruneInterval())
package history
