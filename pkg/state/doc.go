// Package state persists the progress of file sessions so a restarted
// rankflow can resume reading where it stopped.
//
// Only the byte offset into the source file and the number of completed
// windows are stored. Correlation results are never persisted.
//
//	repo := state.NewFileRepository("/var/lib/rankflow")
//	s, err := repo.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	s.Advance(path, offset)
//	if err := repo.Save(ctx, s); err != nil {
//	    return err
//	}
package state
