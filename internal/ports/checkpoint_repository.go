package ports

import "github.com/bft-labs/rankflow/pkg/state"

// CheckpointRepository persists file-mode progress for --resume.
// Save must be atomic so a crash never leaves a torn file.
type CheckpointRepository = state.Repository
